package location

import "strings"

// Activity types recorded with each location access.
const (
	ActivityReading     = "reading"
	ActivityWriting     = "writing"
	ActivityDebugging   = "debugging"
	ActivityRefactoring = "refactoring"
	ActivityReviewing   = "reviewing"
	ActivityUnknown     = "unknown"
)

// activityKeywords maps context-string fragments to activity types. Order
// matters: earlier entries win when a context mentions several.
var activityKeywords = []struct {
	keyword  string
	activity string
}{
	{"debug", ActivityDebugging},
	{"fix", ActivityDebugging},
	{"troubleshoot", ActivityDebugging},
	{"refactor", ActivityRefactoring},
	{"restructure", ActivityRefactoring},
	{"review", ActivityReviewing},
	{"writ", ActivityWriting},
	{"edit", ActivityWriting},
	{"implement", ActivityWriting},
	{"add", ActivityWriting},
	{"read", ActivityReading},
	{"look", ActivityReading},
	{"check", ActivityReading},
	{"understand", ActivityReading},
}

// toolActivities maps tool names to activity types.
var toolActivities = map[string]string{
	"Read":  ActivityReading,
	"Grep":  ActivityReading,
	"Glob":  ActivityReading,
	"Edit":  ActivityWriting,
	"Write": ActivityWriting,
}

// InferActivity resolves the activity type for an access with four-level
// precedence: explicit value, context keywords, tool name, unknown.
func InferActivity(explicit, contextStr, tool string) string {
	if explicit != "" {
		return explicit
	}

	lower := strings.ToLower(contextStr)
	for _, k := range activityKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.activity
		}
	}

	if a, ok := toolActivities[tool]; ok {
		return a
	}

	return ActivityUnknown
}
