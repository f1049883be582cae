package tinystore

import "reflect"

// MergeFunc computes the next state of a merge write from the current state
// and a patch. It must not mutate either argument.
type MergeFunc[T any] func(current, patch T) T

// ShallowMerge is the default [MergeFunc].
//
// The merge is one level deep, by kind of T:
//
//   - map: a new map with every entry of current, then every entry of patch.
//     A nil patch contributes no keys.
//   - struct: a copy of current where every exported field that is non-zero
//     in patch is overwritten. A zero field means "not in the patch"; use
//     [Store.ReplaceState] or a custom MergeFunc to write zero values.
//   - pointer to struct or map: the pointees are merged into a new value. A
//     nil patch keeps current, a nil current yields patch.
//   - interface: merged by the rules above when both hold the same dynamic
//     type, otherwise patch wins.
//   - anything else: patch replaces current.
//
// Nested values are carried over by reference, never merged recursively.
//
// Example:
//
//	cur := map[string]any{"a": 1, "b": 2}
//	next := tinystore.ShallowMerge(cur, map[string]any{"b": 5})
//	// next == map[string]any{"a": 1, "b": 5}
func ShallowMerge[T any](current, patch T) T {
	cur := reflect.ValueOf(&current).Elem()
	pat := reflect.ValueOf(&patch).Elem()

	var out T
	reflect.ValueOf(&out).Elem().Set(mergeValue(cur, pat))
	return out
}

func mergeValue(cur, patch reflect.Value) reflect.Value {
	switch patch.Kind() {
	case reflect.Map:
		return mergeMaps(cur, patch)

	case reflect.Struct:
		return mergeStructs(cur, patch)

	case reflect.Pointer:
		if patch.IsNil() {
			return cur
		}
		if cur.IsNil() {
			return patch
		}
		switch patch.Elem().Kind() {
		case reflect.Struct, reflect.Map:
			out := reflect.New(cur.Type().Elem())
			out.Elem().Set(mergeValue(cur.Elem(), patch.Elem()))
			return out
		}
		return patch

	case reflect.Interface:
		if patch.IsNil() {
			return cur
		}
		if cur.IsNil() || cur.Elem().Type() != patch.Elem().Type() {
			return patch
		}
		out := reflect.New(cur.Type()).Elem()
		out.Set(mergeValue(cur.Elem(), patch.Elem()))
		return out
	}

	return patch
}

func mergeMaps(cur, patch reflect.Value) reflect.Value {
	if cur.IsNil() && patch.IsNil() {
		return cur
	}

	out := reflect.MakeMapWithSize(cur.Type(), cur.Len()+patch.Len())
	iter := cur.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	iter = patch.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	return out
}

func mergeStructs(cur, patch reflect.Value) reflect.Value {
	out := reflect.New(cur.Type()).Elem()
	out.Set(cur)

	typ := patch.Type()
	for i := 0; i < patch.NumField(); i++ {
		if !typ.Field(i).IsExported() {
			continue
		}
		field := patch.Field(i)
		if field.IsZero() {
			continue
		}
		out.Field(i).Set(field)
	}
	return out
}
