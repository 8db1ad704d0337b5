package logging

import "log/slog"

func attrsToMap(attrs []slog.Attr) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	values := map[string]any{}
	for _, attr := range attrs {
		addAttr(values, attr)
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func addAttr(into map[string]any, attr slog.Attr) {
	if attr.Key == "" {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := map[string]any{}
		for _, groupAttr := range value.Group() {
			addAttr(inner, groupAttr)
		}
		into[attr.Key] = inner
		return
	}
	into[attr.Key] = value.Any()
}
