package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/morningai/morningai/internal/models"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom tags used by request structs to gin's validator
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("morningai_role", func(fl validator.FieldLevel) bool {
			role := fl.Field().String()
			return role == models.RoleAdmin || role == models.RoleUser
		})
		_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
				return true
			}
			return false
		})
	})
}

// bindJSON binds the request body and writes a 400 on failure
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = describeFieldError(fe)
			}
			s.logger.Debug().Err(err).Msg("Request validation failed")
			c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "errors": fields})
			return false
		}
		s.logger.Debug().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "morningai_role":
		return `must be "admin" or "user"`
	case "priority":
		return "must be one of low, medium, high, critical"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
