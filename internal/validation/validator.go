package validation

import (
	"fmt"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/mcnijman/go-emailaddress"
)

const MaxNameLength = 150

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Translation keys for the messages clients see.
const (
	keyMissing         = "missing_field"
	keyUsernameLength  = "username_length"
	keyUsernamePattern = "username_pattern"
	keyFirstNameMax    = "first_name_max"
	keyLastNameMax     = "last_name_max"
	keyEmailInvalid    = "email_invalid"
)

var messages = map[string]string{
	keyMissing:         "Missing data for required field.",
	keyUsernameLength:  fmt.Sprintf("Username can not exceed %d characters.", MaxNameLength),
	keyUsernamePattern: "Username must start with a letter, and contain only letters, numbers, and underscores.",
	keyFirstNameMax:    "First name can not exceed {0} characters.",
	keyLastNameMax:     "Last name can not exceed {0} characters.",
	keyEmailInvalid:    "Not a valid email address.",
}

// rule is one independently checked constraint on a field.
// A failing required rule ends checking for that field.
// Username has no required rule: an empty one fails both length and pattern.
type rule struct {
	tag string
	key string
}

var (
	usernameRules = []rule{
		{tag: fmt.Sprintf("min=1,max=%d", MaxNameLength), key: keyUsernameLength},
		{tag: "username_pattern", key: keyUsernamePattern},
	}
	firstNameRules = []rule{{tag: fmt.Sprintf("max=%d", MaxNameLength), key: keyFirstNameMax}}
	lastNameRules  = []rule{{tag: fmt.Sprintf("max=%d", MaxNameLength), key: keyLastNameMax}}
	emailRules     = []rule{
		{tag: "required", key: keyMissing},
		{tag: "email,mailbox", key: keyEmailInvalid},
	}
	passwordRules = []rule{{tag: "required", key: keyMissing}}
)

// SignUp is the raw field set of a registration request.
type SignUp struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProfileChanges holds the optional fields of a profile update.
// nil or "" means the field is left unchanged and is not validated.
type ProfileChanges struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// Validator checks field shapes. Safe for concurrent use.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

func New() (*Validator, error) {
	v := validator.New()
	if err := v.RegisterValidation("username_pattern", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		_, err := emailaddress.Parse(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, err
	}

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	for key, text := range messages {
		if err := trans.Add(key, text, true); err != nil {
			return nil, err
		}
	}

	return &Validator{v: v, trans: trans}, nil
}

// MustNew panics if the validator cannot be built. Intended for wiring and tests.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateSignUp returns every violated rule per field, or nil when the input is valid.
func (v *Validator) ValidateSignUp(in SignUp) map[string][]string {
	errs := fieldErrors{}
	errs.add("username", v.check(in.Username, usernameRules))
	errs.add("email", v.check(in.Email, emailRules))
	errs.add("password", v.check(in.Password, passwordRules))
	errs.add("first_name", v.check(in.FirstName, firstNameRules))
	errs.add("last_name", v.check(in.LastName, lastNameRules))
	return errs.result()
}

// ValidateProfile validates only the fields that carry a non-empty value.
func (v *Validator) ValidateProfile(in ProfileChanges) map[string][]string {
	errs := fieldErrors{}
	if present(in.Username) {
		errs.add("username", v.check(*in.Username, usernameRules))
	}
	if present(in.FirstName) {
		errs.add("first_name", v.check(*in.FirstName, firstNameRules))
	}
	if present(in.LastName) {
		errs.add("last_name", v.check(*in.LastName, lastNameRules))
	}
	return errs.result()
}

func (v *Validator) check(value string, rules []rule) []string {
	var out []string
	for _, r := range rules {
		err := v.v.Var(value, r.tag)
		if err == nil {
			continue
		}
		out = append(out, v.message(r, err))
		if r.tag == "required" {
			break
		}
	}
	return out
}

func (v *Validator) message(r rule, err error) string {
	var param string
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		param = verrs[0].Param()
		if msg, terr := v.trans.T(r.key, param); terr == nil {
			return msg
		}
		return verrs[0].Translate(v.trans)
	}
	if msg, terr := v.trans.T(r.key, param); terr == nil {
		return msg
	}
	return err.Error()
}

func present(s *string) bool {
	return s != nil && *s != ""
}

type fieldErrors map[string][]string

func (f fieldErrors) add(field string, msgs []string) {
	if len(msgs) > 0 {
		f[field] = msgs
	}
}

func (f fieldErrors) result() map[string][]string {
	if len(f) == 0 {
		return nil
	}
	return f
}
