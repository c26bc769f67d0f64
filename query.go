package katoni

import (
	"net/url"
	"strings"
)

// RemoveParams drops every query parameter whose name is in names. The rest of
// the URL (scheme, host, port, path, fragment) is kept as given, and the
// remaining pairs keep their original order and encoding. When nothing is left
// the "?" is dropped as well.
func RemoveParams(rawURL string, names ...string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.RawQuery == "" && !u.ForceQuery {
		return rawURL, nil
	}

	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		name := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			name = pair[:i]
		}
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if _, ok := drop[name]; ok {
			continue
		}
		kept = append(kept, pair)
	}

	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
	return u.String(), nil
}

// AppendParams adds params to the query string of rawURL. Parameters already
// present in the URL win over params with the same name. The merged query is
// encoded with keys in sorted order so the same input always yields the same
// URL.
func AppendParams(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	if u.RawQuery != "" {
		values, err = url.ParseQuery(u.RawQuery)
		if err != nil {
			return "", err
		}
	}
	for k, v := range params {
		if _, exists := values[k]; exists {
			continue
		}
		values.Set(k, v)
	}

	// url.Values.Encode sorts by key.
	u.RawQuery = values.Encode()
	u.ForceQuery = false
	return u.String(), nil
}

// redactURL hides credential parameters so URLs can be logged or put in errors.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return rawURL
	}
	changed := false
	for _, name := range credentialParams {
		if _, ok := values[name]; ok {
			values.Set(name, "[redacted]")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = values.Encode()
	return u.String()
}
