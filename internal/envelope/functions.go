package envelope

import "strings"

// FunctionNames lists the post-processing functions the backend accepts,
// in their canonical spelling.
var FunctionNames = []string{
	"cutOffMin",
	"cutOffMax",
	"clampMin",
	"clampMax",
	"absolute",
	"runningDiff",
	"log2",
	"log10",
	"cumulativeSum",
	"ewma3",
	"ewma5",
	"ewma7",
	"median3",
	"median5",
	"median7",
	"timeShift",
	"anomaly",
	"fillZero",
}

var functionsByLower = func() map[string]string {
	m := make(map[string]string, len(FunctionNames))
	for _, name := range FunctionNames {
		m[strings.ToLower(name)] = name
	}
	return m
}()

// NormalizeFunctionName returns the canonical spelling of name, matched
// case-insensitively. Unknown names are returned unchanged.
func NormalizeFunctionName(name string) string {
	if canonical, ok := functionsByLower[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// IsKnownFunction reports whether name is a canonical function name.
func IsKnownFunction(name string) bool {
	canonical, ok := functionsByLower[strings.ToLower(name)]
	return ok && canonical == name
}
