package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// keyTimeLayout is the 14-digit timestamp prefix of unique keys.
const keyTimeLayout = "20060102150405"

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	extPattern        = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

	jst = time.FixedZone("JST", 9*60*60)
)

// Namer derives Unique-mode object keys of the form
// "{yyyymmddHHMMSS JST}_{identifier}{ext}". When that stem was already
// handed out within the current second, a "-{n}" disambiguator is inserted
// before the extension. Stems are tracked whole, so an identifier that
// itself ends in "-{n}" cannot reproduce a disambiguated key, and two
// uploads in one second never share a stem whatever their extensions.
type Namer struct {
	mu        sync.Mutex
	now       func() time.Time
	lastStamp string
	issued    map[string]struct{}
}

// NewNamer creates a Namer using the wall clock.
func NewNamer() *Namer {
	return &Namer{now: time.Now, issued: make(map[string]struct{})}
}

// Next returns a fresh key for an upload of originalFilename on behalf of identifier.
func (n *Namer) Next(identifier, originalFilename string) (string, error) {
	if !identifierPattern.MatchString(identifier) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	ext := filepath.Ext(originalFilename)
	if !extPattern.MatchString(ext) {
		ext = ""
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	stamp := n.now().In(jst).Format(keyTimeLayout)
	// Stamps are fixed width, so lexical order is time order. A clock that
	// steps back keeps the history instead of forgetting it.
	if stamp > n.lastStamp {
		n.lastStamp = stamp
		clear(n.issued)
	}

	stem := stamp + "_" + identifier
	for seq := 1; ; seq++ {
		if _, taken := n.issued[stem]; !taken {
			break
		}
		stem = stamp + "_" + identifier + "-" + strconv.Itoa(seq)
	}
	n.issued[stem] = struct{}{}
	return stem + ext, nil
}
