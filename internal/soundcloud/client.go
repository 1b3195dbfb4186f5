package soundcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIBase is the public catalog API base URL.
const DefaultAPIBase = "https://api.soundcloud.com"

// DefaultTokenURL is the public client-credential exchange endpoint.
const DefaultTokenURL = DefaultAPIBase + "/oauth2/token"

// apiError reports a non-2xx catalog response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("catalog error: %d: %s", e.Status, e.Body)
}

// doJSON issues an authorized request against an absolute endpoint URL and
// decodes the JSON response into out.
func doJSON(ctx context.Context, client *http.Client, tokens *TokenCache, endpoint string, params url.Values, out any) error {
	token, err := tokens.Token(ctx)
	if err != nil {
		return err
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "OAuth "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return decodeJSON(body, out)
}

func decodeJSON(body []byte, out any) error {
	return json.NewDecoder(bytes.NewReader(body)).Decode(out)
}
