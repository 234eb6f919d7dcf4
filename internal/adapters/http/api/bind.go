package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/goccy/go-json"

	"github.com/okian/elove/internal/domain/errs"
)

const maxBodyBytes = 1 << 20

type binder struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	bindOnce sync.Once
	bindSvc  *binder
)

// getBinder returns the shared validator with English messages keyed by json names.
func getBinder() *binder {
	bindOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		bindSvc = &binder{validate: v, translator: trans}
	})
	return bindSvc
}

// decodeJSON reads a single JSON object into T and validates it.
func decodeJSON[T any](r *http.Request) (T, error) {
	const op = "api.decode"
	var dst T
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dst, errs.Newf(op, errs.ErrValidation, "empty body")
		}
		return dst, errs.Newf(op, errs.ErrValidation, "invalid JSON: %v", err)
	}
	if dec.More() {
		return dst, errs.Newf(op, errs.ErrValidation, "unexpected trailing data")
	}

	if err := getBinder().validate.Struct(dst); err != nil {
		return dst, errs.Newf(op, errs.ErrValidation, "%s", validationMessage(err))
	}
	return dst, nil
}

// validationMessage returns the first translated validation failure.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Translate(getBinder().translator)
	}
	return err.Error()
}
