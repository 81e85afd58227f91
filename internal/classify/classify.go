// Package classify turns pipeline failures into categories and messages a
// user can act on.
package classify

import (
	"strings"

	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

// Category of a failed clone.
type Category string

const (
	OutOfMemory      Category = "OutOfMemory"
	InvalidManifest  Category = "InvalidManifest"
	InvalidResources Category = "InvalidResources"
	Timeout          Category = "Timeout"
	MissingManifest  Category = "MissingManifest"
	BadArchive       Category = "BadArchive"
	NotFound         Category = "NotFound"
	InvalidRequest   Category = "InvalidRequest"
	Unknown          Category = "Unknown"
)

// Result is the classification of one failure.
type Result struct {
	Kind     pipe.Kind `json:"kind"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
}

type rule struct {
	substr   string
	category Category
}

// outputRules are checked in order against the captured tool output.
var outputRules = []rule{
	{"OutOfMemoryError", OutOfMemory},
	{"Failed to parse AndroidManifest.xml", InvalidManifest},
	{"not well-formed (invalid token)", InvalidResources},
	{"Process timed out", Timeout},
	{"process timed out", Timeout},
}

var kindCategories = map[pipe.Kind]Category{
	pipe.Timeout:            Timeout,
	pipe.MissingManifest:    MissingManifest,
	pipe.ManifestParseError: InvalidManifest,
	pipe.ArchiveReadError:   BadArchive,
	pipe.InputNotFound:      NotFound,
	pipe.InvalidRequest:     InvalidRequest,
}

var messages = map[Category]string{
	OutOfMemory:      "Java ran out of memory. Try a smaller APK or increase the Java heap size.",
	InvalidManifest:  "Invalid AndroidManifest.xml. The APK might be corrupted or not supported.",
	InvalidResources: "Invalid resources detected. The APK might be obfuscated or protected.",
	Timeout:          "The process timed out. The APK might be too large or complex.",
	MissingManifest:  "The decompiled APK has no AndroidManifest.xml. The APK might be corrupted or not supported.",
	BadArchive:       "The APK could not be read as an archive. The file might be truncated or not an APK.",
	NotFound:         "The uploaded APK could not be found on the server.",
	InvalidRequest:   "The request was rejected. Check the custom name.",
	Unknown:          "Unknown error occurred. Check the server logs for details.",
}

// Classify maps err to a category. Tool failures are refined by looking for
// known markers in the tool output; everything else follows the kind.
func Classify(err error) Result {
	f := pipe.AsFailure(err)
	if f == nil {
		return Result{Category: Unknown, Message: Message(Unknown)}
	}
	c := Unknown
	if cat, ok := kindCategories[f.Kind]; ok {
		c = cat
	}
	if f.Kind == pipe.ExternalToolError || f.Kind == pipe.Internal {
		if cat, ok := match(f.Output + "\n" + f.Message); ok {
			c = cat
		}
	}
	return Result{Kind: f.Kind, Category: c, Message: Message(c)}
}

// Message is the user facing text of a category.
func Message(c Category) string {
	if m, ok := messages[c]; ok {
		return "Error modifying APK: " + m
	}
	return "Error modifying APK: " + messages[Unknown]
}

func match(text string) (Category, bool) {
	for _, r := range outputRules {
		if strings.Contains(text, r.substr) {
			return r.category, true
		}
	}
	return Unknown, false
}
