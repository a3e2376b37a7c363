package fetch

import (
	"net/url"
	"path"
	"strings"
)

// DirectCandidates derives direct download URLs from a streaming URL that
// carries an output_file query parameter. Candidates are returned in the
// order they should be tried; nil means no output file was named.
func DirectCandidates(streamURL string) []string {
	u, err := url.Parse(streamURL)
	if err != nil || u.Host == "" {
		return nil
	}
	name := strings.TrimSpace(u.Query().Get("output_file"))
	if name == "" {
		return nil
	}
	name = path.Base(name)
	name = strings.TrimSuffix(name, ".wav")
	if name == "" || name == "." || name == "/" {
		return nil
	}

	base := url.URL{Scheme: u.Scheme, Host: u.Host}
	withExt := name + ".wav"

	outputs := func(file string) string {
		c := base
		c.Path = "/outputs/" + file
		return c.String()
	}
	getFile := func(file string) string {
		c := base
		c.Path = "/api/get-file"
		c.RawQuery = url.Values{"filename": {file}}.Encode()
		return c.String()
	}

	return []string{
		outputs(withExt),
		outputs(name),
		getFile(withExt),
		getFile(name),
	}
}
