package depcache

import "reflect"

// Type identifies a logical owner type ("User", "Order"). Any stable name works;
// TypeFor and TypeOf derive one from a Go type.
type Type string

// Edge From->To declares that data of type From depends on type To: keys tagged
// with From are also recorded under To, so invalidating To reaches them.
type Edge struct {
	From Type `json:"from" yaml:"from"`
	To   Type `json:"to" yaml:"to"`
}

// TypeFor names T by its Go type. Pointer types name their element, so
// TypeFor[*User]() == TypeFor[User]().
func TypeFor[T any]() Type {
	return typeName(reflect.TypeFor[T]())
}

// TypeOf names the dynamic type of v. A nil v yields "".
func TypeOf(v any) Type {
	if v == nil {
		return ""
	}
	return typeName(reflect.TypeOf(v))
}

func typeName(rt reflect.Type) Type {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return Type(rt.String())
}
