// Package s3 implements provider.Store on AWS S3 and S3-compatible
// endpoints. A keeptree container is one bucket.
package s3

import "regexp"

// Page size limits for ListObjectsV2.
const (
	DefaultMaxKeys = 1000
	MaxAllowedKeys = 1000
)

// DefaultAWSRegion is used for AWS S3 when neither the config nor the SDK
// chain yields a region.
const DefaultAWSRegion = "us-east-1"

// bucketName follows the S3 naming rules: 3-63 characters of lowercase
// letters, digits, dots and hyphens, starting and ending alphanumeric.
var bucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Config is built by pkg/connect from an s3:// connection string.
//
// Credentials come from AccessKeyID/SecretAccessKey when both are set and
// from the SDK default chain (environment, shared files, Profile, instance
// role) otherwise.
type Config struct {
	// Container is the bucket placeholders and uploads go to.
	Container string

	// Region overrides the SDK chain. With no Endpoint and no region anywhere
	// DefaultAWSRegion is used.
	Region string

	// Endpoint selects an S3-compatible store, e.g. http://localhost:9000.
	Endpoint string

	Profile string

	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle puts the bucket in the URL path. Most S3-compatible
	// stores need it.
	ForcePathStyle bool

	// MaxKeys is the List page size; 0 means DefaultMaxKeys.
	MaxKeys int

	// LocationConstraint is sent when the container is created. Empty means
	// the resolved region, or none for us-east-1 and custom endpoints.
	LocationConstraint string
}

// Validate checks the container name and credential pairing.
func (c *Config) Validate() error {
	switch {
	case c.Container == "":
		return &ConfigError{Field: "Container", Message: "container name is required"}
	case !bucketName.MatchString(c.Container):
		return &ConfigError{Field: "Container", Message: "invalid bucket name " + c.Container}
	case (c.AccessKeyID != "") != (c.SecretAccessKey != ""):
		return &ConfigError{Field: "AccessKeyID/SecretAccessKey", Message: "access key and secret key must be set together"}
	}
	return nil
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
