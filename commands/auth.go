package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// authorize builds an HTTP client from the stored OAuth2 tokens for scope,
// prompting for the interactive authorisation flow if no cached token
// exists.
func authorize(credentials, scope, tokens string) (*http.Client, error) {
	b, err := os.ReadFile(credentials)
	if err != nil {
		return nil, err
	}

	config, err := google.ConfigFromJSON(b, scope)
	if err != nil {
		return nil, err
	}

	file := tokensFile(credentials, scope, tokens)

	token, err := tokenFromFile(file)
	if err != nil {
		token, err = getTokenFromWeb(config)
		if err != nil {
			return nil, err
		}

		if err := saveToken(file, token); err != nil {
			return nil, err
		}
	}

	return config.Client(context.Background(), token), nil
}

func tokensFile(credentials, scope, tokens string) string {
	_, file := filepath.Split(credentials)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	switch scope {
	case SHEETS:
		return filepath.Join(tokens, fmt.Sprintf("%s.sheets", name))

	case DRIVE:
		return filepath.Join(tokens, fmt.Sprintf("%s.drive", name))

	default:
		return filepath.Join(tokens, fmt.Sprintf("%s.tokens", name))
	}
}

// getTokenFromWeb requests a token from the web after the user pastes the
// authorisation code.
func getTokenFromWeb(config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code (%v)", err)
	}

	token, err := config.Exchange(context.TODO(), authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web (%v)", err)
	}

	return token, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	token := oauth2.Token{}
	err = json.NewDecoder(f).Decode(&token)

	return &token, err
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token (%v)", err)
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
