package storage

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/response"
)

// FileHandler serves stored files under the mount. A request that carries a
// token must present a valid, unexpired one for the requested key; token-less
// reads are refused when signedOnly is set.
func (b *LocalBackend) FileHandler(signedOnly bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := keyUnder(path.Clean(r.URL.Path), b.mount)
		if err != nil {
			response.NotFound(w, "object not found")
			return
		}

		token := r.URL.Query().Get("token")
		switch {
		case token != "":
			if err := b.signer.Verify(token, key); err != nil {
				logging.WithContext(r.Context()).Debug("rejected local access token",
					zap.String("key", key), zap.Error(err))
				response.Forbidden(w, "invalid or expired access token")
				return
			}
		case signedOnly:
			response.Forbidden(w, "access token required")
			return
		}

		f, err := b.Open(key)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				response.NotFound(w, "object not found")
				return
			}
			logging.WithContext(r.Context()).Error("open stored file", zap.String("key", key), zap.Error(err))
			response.InternalError(w)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			response.NotFound(w, "object not found")
			return
		}
		w.Header().Set("Content-Type", contentTypeForKey(key))
		http.ServeContent(w, r, key, info.ModTime(), f)
	})
}

// Video types missing from minimal mime tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func contentTypeForKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
