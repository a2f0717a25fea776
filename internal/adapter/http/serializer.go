package http

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"
)

// StrictJSONSerializer decodes request bodies with exact, case-sensitive
// field names: keys that only match a field case-insensitively are dropped
// instead of being bound. Encoding is echo's default.
type StrictJSONSerializer struct {
	echo.DefaultJSONSerializer
}

func (s StrictJSONSerializer) Deserialize(c echo.Context, i any) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	fields := exactFieldNames(i)
	if fields == nil {
		return decode(raw, i)
	}

	var obj map[string]json.RawMessage
	if err := decode(raw, &obj); err != nil {
		return err
	}
	kept := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		if _, ok := fields[k]; ok {
			kept[k] = v
		}
	}
	filtered, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return decode(filtered, i)
}

func decode(b []byte, i any) error {
	err := json.Unmarshal(b, i)
	switch e := err.(type) {
	case nil:
		return nil
	case *json.UnmarshalTypeError:
		return echo.NewHTTPError(400, fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", e.Type, e.Value, e.Field, e.Offset)).SetInternal(err)
	case *json.SyntaxError:
		return echo.NewHTTPError(400, fmt.Sprintf("Syntax error: offset=%v, error=%v", e.Offset, e.Error())).SetInternal(err)
	default:
		return err
	}
}

// exactFieldNames lists the json keys of a *struct target, nil otherwise.
func exactFieldNames(i any) map[string]struct{} {
	t := reflect.TypeOf(i)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil
	}
	t = t.Elem()
	out := make(map[string]struct{}, t.NumField())
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		out[name] = struct{}{}
	}
	return out
}
