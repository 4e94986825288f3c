package favorites

import (
	"math"
	"strconv"
	"strings"
)

// resumeSites support a "t" query parameter in seconds.
var resumeSites = []string{"bilibili.com", "youtube.com", "youtu.be"}

const timeParam = "t"

// ResumeURL returns rawURL with its time parameter set to the floor of pos.
// Other parameters keep their order. URLs of other sites come back unchanged.
func ResumeURL(rawURL string, pos float64) string {
	if !supportsResume(rawURL) {
		return rawURL
	}

	base, fragment, _ := strings.Cut(rawURL, "#")
	path, query, _ := strings.Cut(base, "?")

	var kept []string
	for _, kv := range strings.Split(query, "&") {
		if kv == "" {
			continue
		}
		key, _, _ := strings.Cut(kv, "=")
		if key == timeParam {
			continue
		}
		kept = append(kept, kv)
	}

	if math.IsNaN(pos) || pos < 0 {
		pos = 0
	}
	kept = append(kept, timeParam+"="+strconv.FormatInt(int64(math.Floor(pos)), 10))

	out := path + "?" + strings.Join(kept, "&")
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

func supportsResume(rawURL string) bool {
	for _, s := range resumeSites {
		if strings.Contains(rawURL, s) {
			return true
		}
	}
	return false
}
