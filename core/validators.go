package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

var (
	// custom validation tags & texts
	secteurTag  = "secteur"
	secteurText = "secteur inconnu"

	natureTag  = "nature"
	natureText = "la nature doit être charge ou produit"

	compteTag   = "compte"
	compteText  = "le compte doit contenir 2 à 8 chiffres"
	compteRegex = regexp.MustCompile(`^\d{2,8}$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "ce champ est obligatoire"
)

// NewTranslator returns the french translator used for validation messages.
func NewTranslator() ut.Translator {
	_fr := fr.New()
	uni := ut.New(_fr, _fr)
	translator, _ := uni.GetTranslator("fr")
	return translator
}

// InitValidators instantiates the validator for use. `secteurs` is the list accepted by the "secteur" tag.
func InitValidators(validate *validator.Validate, translator ut.Translator, secteurs []string) {
	_ = fr_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	known := make(map[string]bool, len(secteurs))
	for _, s := range secteurs {
		known[s] = true
	}
	_ = validate.RegisterValidation(secteurTag, func(fl validator.FieldLevel) bool {
		return known[fl.Field().String()]
	})
	RegisterCustomTranslation(validate, translator, secteurTag, secteurText)

	_ = validate.RegisterValidation(natureTag, natureValidation)
	RegisterCustomTranslation(validate, translator, natureTag, natureText)

	_ = validate.RegisterValidation(compteTag, compteValidation)
	RegisterCustomTranslation(validate, translator, compteTag, compteText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// NewValidator returns a validator initialized with InitValidators and its translator.
func NewValidator(secteurs []string) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator, secteurs)
	return validate, translator
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateValidation turns validator.ValidationErrors into a *ValidationError with translated field messages.
// Any other error is returned as is.
func TranslateValidation(err error, translator ut.Translator) error {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
	}
	return NewValidationError(nil, flds...)
}

// Custom Global Validators

func natureValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "charge", "produit":
		return true
	}
	return false
}

func compteValidation(fl validator.FieldLevel) bool {
	return compteRegex.MatchString(fl.Field().String())
}
