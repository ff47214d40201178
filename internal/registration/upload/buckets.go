// internal/registration/upload/buckets.go
package upload

import "strings"

// BucketClass is the storage target and limits of one asset class.
type BucketClass struct {
	Alias        string
	Bucket       string
	MaxSize      int64
	AllowedTypes []string
}

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var bucketClasses = map[string]BucketClass{
	"profiles":    {Alias: "profiles", Bucket: "profile-images", MaxSize: 5 << 20, AllowedTypes: imageTypes},
	"contestants": {Alias: "contestants", Bucket: "contestant-photos", MaxSize: 10 << 20, AllowedTypes: imageTypes},
	"documents": {
		Alias:   "documents",
		Bucket:  "application-documents",
		MaxSize: 25 << 20,
		AllowedTypes: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
	},
	"events":  {Alias: "events", Bucket: "event-images", MaxSize: 15 << 20, AllowedTypes: imageTypes},
	"gallery": {Alias: "gallery", Bucket: "gallery-media"},
	"logos":   {Alias: "logos", Bucket: "sponsor-logos"},
}

// ResolveBucket maps an alias to its class. Any other hint is taken as a
// literal bucket name with no class limits; an empty hint selects the
// default bucket.
func ResolveBucket(hint string) BucketClass {
	hint = strings.TrimSpace(hint)
	if c, ok := bucketClasses[hint]; ok {
		return c
	}
	if hint == "" {
		hint = DefaultBucket
	}
	return BucketClass{Bucket: hint}
}

// fieldClasses maps the wizard's file fields to their asset class.
var fieldClasses = map[string]string{
	"photo":              "contestants",
	"idDocument":         "documents",
	"medicalCertificate": "documents",
}

// ClassForField returns the bucket alias of a wizard file field, and false
// for fields that take no file.
func ClassForField(field string) (string, bool) {
	alias, ok := fieldClasses[field]
	return alias, ok
}
