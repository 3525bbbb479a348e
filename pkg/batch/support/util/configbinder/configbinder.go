// Package configbinder binds JSL component properties to typed structs.
package configbinder

import (
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const module = "configbinder"

// BindProperties decodes properties into target, a pointer to a struct with yaml tags.
// Input is weakly typed ("3" binds to an int), durations accept strings such as "1m30s"
// and comma-separated strings bind to slices. Keys that match no field are logged and
// ignored. A nil or empty map leaves target unchanged.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return exception.NewBatchError(module, "failed to create property decoder", err, false, false)
	}

	name := targetName(target)
	if err := decoder.Decode(properties); err != nil {
		return exception.NewBatchErrorf(module, "failed to bind properties to %s", name, err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		logger.Warnf("Ignoring unknown properties for %s: %s", name, strings.Join(md.Unused, ", "))
	}
	return nil
}

func targetName(target interface{}) string {
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
