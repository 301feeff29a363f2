package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const preconditionFailed = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message><BucketName>artifacts</BucketName></Error>`

const accessDenied = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message><BucketName>artifacts</BucketName></Error>`

func TestMinioUploadConditions(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		conflict bool
		wantErr  bool
	}{
		{name: "created", status: http.StatusOK},
		{name: "exists", status: http.StatusPreconditionFailed, body: preconditionFailed, conflict: true, wantErr: true},
		{name: "denied", status: http.StatusForbidden, body: accessDenied, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ifNoneMatch, path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ifNoneMatch = r.Header.Get("If-None-Match")
				path = r.URL.Path
				if tt.status != http.StatusOK {
					w.Header().Set("Content-Type", "application/xml")
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
					return
				}
				w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			backend, err := NewMinioBackend(MinioConfig{
				Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
				AccessKey: "minio",
				SecretKey: "minio123",
				Bucket:    "artifacts",
				Region:    "us-east-1",
			})
			require.NoError(t, err)

			obj, err := backend.Upload(context.Background(), "roadmaps/skill-660/worked-example-video.mp4", []byte("mp4"), "video/mp4")

			assert.Equal(t, "*", ifNoneMatch)
			assert.Equal(t, "/artifacts/roadmaps/skill-660/worked-example-video.mp4", path)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, srv.URL+"/artifacts/roadmaps/skill-660/worked-example-video.mp4", obj.URL)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.conflict, errors.Is(err, ErrUploadConflict), err.Error())
		})
	}
}
