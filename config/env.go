package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// bindEnv 把 PREFIX_SECTION_FIELD 形式的环境变量写入 cfg。
// 键名由各层 env tag 以下划线拼接而成，空值视为未设置
func bindEnv(cfg *Config, prefix string) error {
	return walkEnv(reflect.ValueOf(cfg).Elem(), prefix, func(key string, field reflect.Value) error {
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			return nil
		}
		if err := decodeEnv(field, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", key, raw, err)
		}
		return nil
	})
}

// EnvKeys 列出 prefix 下所有可识别的环境变量名，按字段声明顺序
func EnvKeys(prefix string) []string {
	var keys []string
	_ = walkEnv(reflect.ValueOf(DefaultConfig()).Elem(), prefix, func(key string, _ reflect.Value) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

func walkEnv(v reflect.Value, prefix string, visit func(string, reflect.Value) error) error {
	t := v.Type()
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		field := v.Field(i)

		// time.Duration 是 int64，不会走到这里
		if field.Kind() == reflect.Struct {
			if err := walkEnv(field, key, visit); err != nil {
				return err
			}
			continue
		}
		if !field.CanSet() {
			continue
		}
		if err := visit(key, field); err != nil {
			return err
		}
	}
	return nil
}

func decodeEnv(field reflect.Value, raw string) error {
	switch p := field.Addr().Interface().(type) {
	case *string:
		*p = raw
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = b
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = n
	case *int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*p = f
	case *time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*p = d
	case *[]string:
		parts := strings.Split(raw, ",")
		out := parts[:0]
		for _, s := range parts {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*p = out
	default:
		if field.Kind() == reflect.String {
			field.SetString(raw)
			return nil
		}
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
