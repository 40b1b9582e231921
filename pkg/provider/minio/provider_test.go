package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/keeptree/pkg/provider"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"missing endpoint", Config{Bucket: "b"}, "endpoint is required"},
		{"missing bucket", Config{Endpoint: "localhost:9000"}, "bucket name is required"},
		{"half credentials", Config{Endpoint: "localhost:9000", Bucket: "b", AccessKeyID: "k"}, "provided together"},
		{"anonymous", Config{Endpoint: "localhost:9000", Bucket: "b"}, ""},
		{"static credentials", Config{Endpoint: "localhost:9000", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(Config{Endpoint: "localhost:9000", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxKeys, p.maxKeys)
	assert.NoError(t, p.Close())

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestWrapError(t *testing.T) {
	p := &Provider{bucket: "bkt"}

	tests := []struct {
		code     string
		expected error
	}{
		{"NoSuchKey", provider.ErrNotFound},
		{"NoSuchBucket", provider.ErrContainerNotFound},
		{"BucketAlreadyOwnedByYou", provider.ErrAlreadyExists},
		{"BucketAlreadyExists", provider.ErrAlreadyExists},
		{"PreconditionFailed", provider.ErrAlreadyExists},
		{"AccessDenied", provider.ErrAccessDenied},
		{"SignatureDoesNotMatch", provider.ErrInvalidCredentials},
		{"SlowDownWrite", provider.ErrThrottled},
		{"XMinioServerNotInitialized", provider.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := p.wrapError("Op", "key", minio.ErrorResponse{Code: tt.code, Message: "msg"})
			assert.ErrorIs(t, err, tt.expected)

			var provErr *provider.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, provider.ProviderMinio, provErr.Provider)
			assert.Equal(t, "bkt", provErr.Container)
		})
	}

	t.Run("plain error kept", func(t *testing.T) {
		orig := errors.New("connection reset")
		err := p.wrapError("Op", "", orig)
		assert.ErrorIs(t, err, orig)
	})
}
