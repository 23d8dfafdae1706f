package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type entry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache         sync.Map // reflect.Type -> *entry
	dotenvOnce    sync.Once
	validatorOnce sync.Once
	validate      *validator.Validate
)

// Load fills v from environment variables, reading a .env file first when present.
// Fields are described with env/envDefault tags and checked against validate tags.
// Each config type is parsed once; later calls copy the cached value.
//
//	type Settings struct {
//		Mode string `env:"SWITCH_MODE" envDefault:"yes" validate:"oneof=yes no"`
//	}
//
//	var s Settings
//	if err := config.Load(&s); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	e, _ := cache.LoadOrStore(reflect.TypeFor[T](), &entry{})
	ent := e.(*entry)
	ent.once.Do(func() {
		var cfg T
		ent.err = Parse(&cfg)
		ent.value = cfg
	})
	if ent.err != nil {
		return ent.err
	}
	*v = ent.value.(T)
	return nil
}

// Parse fills v from the environment without caching.
func Parse[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return Validate(v)
}

// Validate checks the validate struct tags of v.
func Validate(v any) error {
	validatorOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	if err := validate.Struct(v); err != nil {
		return errors.Join(ErrValidatingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on error.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %T: %v", *v, err))
	}
}
