// Package config provides configuration loading from environment variables
// and optional YAML files, driven by struct tags: env, yaml, default, required.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
// If a config struct implements this interface, validation will be automatically
// called after loading configuration from files and environment variables.
type Validator interface {
	Validate() error
}

// GetConfigFromEnvVars loads configuration from environment variables only.
// Fields are resolved in order: env var, default tag. Required fields without
// a value produce an aggregated validation error.
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()
	typeOfT := val.Type()

	setFields, err := applyEnvVars(val, typeOfT)
	if err != nil {
		return err
	}

	if err := applyDefaultsAndRequired(val, typeOfT, setFields); err != nil {
		return err
	}

	return validate(dest)
}

// GetConfig loads configuration from a YAML file first, then overlays
// environment variables on top. When allowFileErrors is true a missing or
// unreadable file is ignored and env vars alone are used.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath != "" {
		data, err := os.ReadFile(filepath) //nolint:gosec // path comes from operator config
		if err != nil {
			if !allowFileErrors {
				return fmt.Errorf("failed to read config file %s: %w", filepath, err)
			}
		} else if err := yaml.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
		}
	}

	return GetConfigFromEnvVars(dest)
}

func validate[T any](dest *T) error {
	if v, ok := any(dest).(Validator); ok {
		return v.Validate()
	}
	if v, ok := any(*dest).(Validator); ok {
		return v.Validate()
	}
	return nil
}

// applyEnvVars walks the struct recursively and sets fields from their env
// tags. It returns the set of fields that were explicitly provided, so
// defaults don't overwrite them.
func applyEnvVars(val reflect.Value, typeOfT reflect.Type) (map[string]bool, error) {
	setFields := make(map[string]bool)

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			nested, err := applyEnvVars(field, fieldType.Type)
			if err != nil {
				return nil, err
			}
			for k, v := range nested {
				setFields[k] = v
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}

		envVal := os.Getenv(tag)
		if envVal == "" {
			continue
		}

		// struct type + field name avoids collisions between same-named fields
		setFields[typeOfT.Name()+"."+fieldType.Name] = true

		if err := setField(field, envVal); err != nil {
			return nil, fmt.Errorf("env %s: %w", tag, err)
		}
	}

	return setFields, nil
}

func applyDefaultsAndRequired(val reflect.Value, typeOfT reflect.Type, setFields map[string]bool) error {
	var result error

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyDefaultsAndRequired(field, fieldType.Type, setFields); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		required := strings.EqualFold(fieldType.Tag.Get("required"), "true")
		defaultTag := fieldType.Tag.Get("default")
		if required && defaultTag != "" {
			// a default always satisfies a required field
			required = false
		}

		if field.IsZero() && required {
			result = multierror.Append(result, fmt.Errorf(
				"required field env:%s / yaml:%s is missing",
				fieldType.Tag.Get("env"), fieldType.Tag.Get("yaml")))
			continue
		}

		fieldKey := typeOfT.Name() + "." + fieldType.Name
		if field.IsZero() && defaultTag != "" && !setFields[fieldKey] {
			if err := setField(field, defaultTag); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", fieldType.Name, err))
			}
		}
	}

	return result
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(duration))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(intVal)
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		values := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, v := range values {
			slice.Index(i).SetString(strings.TrimSpace(v))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}

	return nil
}
