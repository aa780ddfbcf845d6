package forensics

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/rwcarlsen/goexif/exif"
)

var (
	// softwareFields may carry the name of the program that last wrote the file
	softwareFields = []exif.FieldName{exif.Make, exif.Model, exif.Software}
	// timestampFields must agree on an untouched capture
	timestampFields = []exif.FieldName{exif.DateTime, exif.DateTimeOriginal, exif.DateTimeDigitized}
)

// checkMetadata inspects embedded EXIF: its absence, editing software
// signatures and disagreeing timestamps each make the image suspicious
func checkMetadata(content []byte, editingSoftware []string) (check model.MetadataCheck) {
	defer func() {
		if r := recover(); r != nil {
			check = model.MetadataCheck{Error: fmt.Sprintf("metadata: %v", r)}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return model.MetadataCheck{
			Suspicious: true,
			Issues:     []string{"No EXIF metadata found"},
		}
	}

	check = model.MetadataCheck{HasEXIF: true, Fields: map[string]string{}}
	for _, name := range append(append([]exif.FieldName{}, softwareFields...), timestampFields...) {
		if v, ok := stringField(x, name); ok {
			check.Fields[string(name)] = v
		}
	}

	for _, name := range softwareFields {
		value := strings.ToLower(check.Fields[string(name)])
		if value == "" {
			continue
		}
		for _, editor := range editingSoftware {
			if strings.Contains(value, editor) {
				check.Issues = append(check.Issues, "Image editing software detected: "+value)
				break
			}
		}
	}

	var stamps []string
	for _, name := range timestampFields {
		if v, ok := check.Fields[string(name)]; ok {
			stamps = append(stamps, v)
		}
	}
	for _, s := range stamps[min(1, len(stamps)):] {
		if s != stamps[0] {
			check.Issues = append(check.Issues, "Inconsistent date/time stamps in EXIF")
			break
		}
	}

	check.Suspicious = len(check.Issues) > 0
	return check
}

func stringField(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	v, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
