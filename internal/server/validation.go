package server

import (
	"errors"
	"strings"
	"sync"

	"github.com/codewords/codewords/internal/protocol"
	"github.com/codewords/codewords/internal/universe"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var (
	validatorOnce   sync.Once
	commandValidate *validator.Validate
)

// commandMessages maps failed field/tag pairs to the text clients see.
var commandMessages = bindMessages{
	"Nickname": {
		"required": "nickname must be between 1 and 16 characters",
		"max":      "nickname must be between 1 and 16 characters",
	},
	"JoinCode": {
		"required": "join code is required",
		"max":      "join code is too long",
	},
	"Role": {
		"required": "role is required",
		"oneof":    "role must be spymaster, operative or spectator",
	},
	"Team": {
		"oneof": "team must be red, blue or null",
	},
}

func registerValidators() {
	validatorOnce.Do(func() {
		commandValidate = validator.New(validator.WithRequiredStructEnabled())
		_ = commandValidate.RegisterValidation("joincode", isJoinCode)
		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = engine.RegisterValidation("joincode", isJoinCode)
		}
	})
}

func isJoinCode(fl validator.FieldLevel) bool {
	return universe.ValidJoinCode(fl.Field().String())
}

// validateCommand checks a decoded command's payload. Failures are BadInput.
func validateCommand(cmd protocol.Command) error {
	registerValidators()
	if err := commandValidate.Struct(cmd); err != nil {
		return protocol.NewError(protocol.ErrBadInput, resolveBindError(err, commandMessages, "invalid "+cmd.CommandName()+" payload"))
	}
	return nil
}

// normalizeNickname trims and NFC-normalizes a nickname so the length check
// counts what a person would call characters.
func normalizeNickname(raw string) string {
	return strings.TrimSpace(norm.NFC.String(raw))
}

func validateNickname(raw string) (string, error) {
	cmd := protocol.AuthenticateCommand{Nickname: normalizeNickname(raw)}
	if err := validateCommand(cmd); err != nil {
		return "", err
	}
	return cmd.Nickname, nil
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}
