package haystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MdRinfo = "17106176" // Either 17106176 or 50660608

type AnisetteResponse struct {
	XAppleIClientTime time.Time `json:"X-Apple-I-Client-Time"`
	XAppleIMD         string    `json:"X-Apple-I-MD"`
	XAppleIMDLU       string    `json:"X-Apple-I-MD-LU"`
	XAppleIMDM        string    `json:"X-Apple-I-MD-M"`
	XAppleIMDRINFO    string    `json:"X-Apple-I-MD-RINFO"`
	XAppleISRLNO      string    `json:"X-Apple-I-SRL-NO"`
	XAppleITimeZone   string    `json:"X-Apple-I-TimeZone"`
	XAppleLocale      string    `json:"X-Apple-Locale"`
	XMMeClientInfo    string    `json:"X-MMe-Client-Info"`
	XMmeDeviceId      string    `json:"X-Mme-Device-Id"`
}

// AnisetteProvider adds the device headers served by an anisette server to
// the account credentials of Account.
type AnisetteProvider struct {
	URL        string
	Account    CredentialProvider
	HTTPClient *http.Client
}

func NewAnisetteProvider(anisetteURL string, account CredentialProvider) *AnisetteProvider {
	return &AnisetteProvider{URL: anisetteURL, Account: account, HTTPClient: http.DefaultClient}
}

func (a *AnisetteProvider) Credentials(ctx context.Context) (*Credentials, error) {
	if a.Account == nil {
		return nil, ErrMissingCredentials
	}
	creds, err := a.Account.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	h, err := a.headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get anisette headers: %w", err)
	}
	merged := http.Header{}
	for k, v := range creds.Header {
		for _, vv := range v {
			merged.Add(k, vv)
		}
	}
	for k, v := range h {
		merged[k] = v
	}
	creds.Header = merged
	return creds, nil
}

func (a *AnisetteProvider) headers(ctx context.Context) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	var response AnisetteResponse
	err = json.NewDecoder(res.Body).Decode(&response)
	if err != nil {
		return nil, err
	}
	if response.XAppleIMD == "" || response.XAppleIMDM == "" {
		return nil, fmt.Errorf("anisette response without machine data")
	}
	userId := uuid.NewString()
	userId = strings.Replace(userId, "-", "", -1)
	userId = strings.ToUpper(userId)

	deviceId := strings.ToUpper(uuid.NewString())

	headers := http.Header{}
	headers.Set("X-Apple-I-MD", response.XAppleIMD)
	headers.Set("X-Apple-I-MD-M", response.XAppleIMDM)
	headers.Set("X-Apple-I-Client-Time", time.Now().UTC().Format(time.RFC3339))
	headers.Set("X-Apple-I-TimeZone", time.Now().Location().String())
	headers.Set("loc", "en_US")
	headers.Set("X-Apple-Locale", "en_US")
	headers.Set("X-Apple-I-MD-RINFO", MdRinfo)
	headers.Set("X-Apple-I-MD-LU", userId)
	headers.Set("X-Mme-Device-Id", deviceId)
	headers.Set("X-Apple-I-SRL-NO", "0")

	return headers, nil
}

var _ CredentialProvider = &AnisetteProvider{}
