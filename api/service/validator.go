package service

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
)

// txSignatureLen is the byte length of an ed25519 transaction
// signature.
const txSignatureLen = 64

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("b58sig", func(fl validator.FieldLevel) bool {
		raw, err := base58.Decode(fl.Field().String())
		return err == nil && len(raw) == txSignatureLen
	})
}
