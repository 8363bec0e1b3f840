package config

import "errors"

var (
	ErrNotInitialised = errors.New("elasticsearch URL not initialised")
	ErrBlankURL       = errors.New("elasticsearch URL is blank")
)

// SettingsError reports missing or unusable connection settings.
type SettingsError struct {
	Err error
}

func (e *SettingsError) Error() string { return "config: " + e.Err.Error() }

func (e *SettingsError) Unwrap() error { return e.Err }

// Settings holds the engine endpoint and optional credentials. It is written
// once at startup and only read afterwards; it carries no locking.
type Settings struct {
	initialised bool
	url         string
	user        string
	password    string
}

// InitDefault initialises the settings with DefaultElasticsearchURL and no credentials.
func (s *Settings) InitDefault() {
	s.url = DefaultElasticsearchURL
	s.user = ""
	s.password = ""
	s.initialised = true
}

// Init initialises the settings with an explicit URL override. An empty url
// is accepted here and rejected by Get.
func (s *Settings) Init(url, user, password string) {
	s.url = url
	s.user = user
	s.password = password
	s.initialised = true
}

func (s *Settings) Get() (url, user, password string, err error) {
	if s == nil || !s.initialised {
		return "", "", "", &SettingsError{Err: ErrNotInitialised}
	}
	if s.url == "" {
		return "", "", "", &SettingsError{Err: ErrBlankURL}
	}
	return s.url, s.user, s.password, nil
}
