package server

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ppiankov/claimlens/internal/model"
)

// MaxBatchClaims bounds one batch request
const MaxBatchClaims = 100

// ClaimRequest is the body of POST /v1/claims/analyze
type ClaimRequest struct {
	ClaimID     string  `json:"claim_id" binding:"max=128"`
	Category    string  `json:"category" binding:"omitempty,max=64,category_tag"`
	Description string  `json:"description" binding:"required,max=65536"`
	Amount      float64 `json:"amount" binding:"gte=0"`
}

func (r ClaimRequest) toModel() model.ClaimRequest {
	// unknown categories are scored with the fallback bands
	category, _ := model.ParseCategory(r.Category)
	return model.ClaimRequest{
		ClaimID:     r.ClaimID,
		Category:    category,
		Description: r.Description,
		Amount:      r.Amount,
	}
}

// BatchClaimsRequest is the body of POST /v1/claims/batch
type BatchClaimsRequest struct {
	Claims []ClaimRequest `json:"claims" binding:"required,min=1,max=100,dive"`
}

var (
	registerOnce sync.Once
	categoryTag  = regexp.MustCompile(`^[a-z][a-z_]*$`)
)

// registerValidators adds the domain enums to gin's validator
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("category_tag", func(fl validator.FieldLevel) bool {
			return categoryTag.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
		})
	})
}
