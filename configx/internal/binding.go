// Package internal implements configx sources, merging and struct binding.
package internal

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// BindToStruct fills target's fields from snapshot using `env` tags, falling
// back to the `default` tag when a key is absent. Nested structs are walked.
func BindToStruct(snapshot map[string]string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to struct, got %T", target)
	}
	return bindStructFields(snapshot, rv.Elem())
}

func bindStructFields(snapshot map[string]string, sv reflect.Value) error {
	st := sv.Type()
	for i := 0; i < sv.NumField(); i++ {
		field := sv.Field(i)
		sf := st.Field(i)
		if !field.CanSet() {
			continue
		}

		key := sf.Tag.Get("env")
		if key == "" {
			if field.Kind() == reflect.Struct {
				if err := bindStructFields(snapshot, field); err != nil {
					return fmt.Errorf("%s: %w", sf.Name, err)
				}
			}
			continue
		}

		value, ok := snapshot[key]
		if !ok {
			value = sf.Tag.Get("default")
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("field %s (%s=%q): %w", sf.Name, key, value, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if value == "" {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(out)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
