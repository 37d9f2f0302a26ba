package syncengine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ValuesEqual сравнивает два значения поля с учетом типа:
//   - числа приводятся к decimal ("5" == 5 == 5.0);
//   - списки сравниваются как отсортированные строки (порядок не важен);
//   - вложенные объекты сравниваются по полям;
//   - nil, "" и пустой список считаются одним и тем же пустым значением.
func ValuesEqual(a, b any) bool {
	aEmpty, bEmpty := isEmpty(a), isEmpty(b)
	if aEmpty || bEmpty {
		return aEmpty && bEmpty
	}

	if da, ok := asDecimal(a); ok {
		if db, ok := asDecimal(b); ok {
			return da.Equal(db)
		}
		return false
	}

	if la, ok := asList(a); ok {
		lb, ok := asList(b)
		if !ok {
			return false
		}
		return canonicalList(la) == canonicalList(lb)
	}

	if ma, ok := asObject(a); ok {
		mb, ok := asObject(b)
		if !ok {
			return false
		}
		return objectsEqual(ma, mb)
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}

	return reflect.DeepEqual(a, b)
}

func objectsEqual(a, b map[string]any) bool {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if !ValuesEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func isEmpty(v any) bool {
	if isNil(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len() == 0
	}
	return false
}

// asDecimal приводит к числу все, что похоже на число
func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		// только десятичная запись: "1e3" или "0x10" числами не считаем
		if _, err := strconv.ParseFloat(s, 64); err != nil || strings.ContainsAny(s, "eExXpP") {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromUint64(rv.Uint()), true
	}
	return decimal.Zero, false
}

func asList(v any) ([]any, bool) {
	if _, isString := v.(string); isString {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// canonicalList: элементы в строки (числа в нормальной записи), сортировка, склейка
func canonicalList(items []any) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if d, ok := asDecimal(item); ok {
			parts = append(parts, d.String())
			continue
		}
		parts = append(parts, fmt.Sprint(item))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1f")
}

func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, false
	}
	// структуры приводим к общему виду через JSON
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}
