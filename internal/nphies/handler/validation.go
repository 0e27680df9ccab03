package handler

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/internal/model"
)

// languageTag accepts any spelling model.ParseLanguage understands.
const languageTag = "nphies_language"

var registerOnce sync.Once

// registerValidations installs the custom binding rules on gin's validator.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin validator engine is not go-playground/validator, custom rules skipped")
			return
		}
		if err := v.RegisterValidation(languageTag, validateLanguage); err != nil {
			logger.Warnw("failed to register validation", "tag", languageTag, "error", err.Error())
		}
	})
}

func validateLanguage(fl validator.FieldLevel) bool {
	_, err := model.ParseLanguage(fl.Field().String())
	return err == nil
}

// isLanguageError reports whether a bind error was caused by languageTag.
func isLanguageError(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == languageTag {
			return true
		}
	}
	return false
}
