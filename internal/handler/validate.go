package handler

import (
	"sync"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the msgtype and folder binding tags on gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("msgtype", func(fl validator.FieldLevel) bool { //nolint:errcheck
			return domain.MessageType(fl.Field().String()).Valid()
		})
		v.RegisterValidation("folder", func(fl validator.FieldLevel) bool { //nolint:errcheck
			return domain.Folder(fl.Field().String()).Assignable()
		})
	})
}
