// Package account manages user records: credentials, identity, the
// admin flag and the reserved system account.
package account

import "time"

// SystemUsername is the reserved account owning files not yet
// attributed to a real user. It always exists and cannot be created or
// logged into by users.
const SystemUsername = "<index>"

// schemaVersion is the current on-disk accounts document version.
// Loading an older document applies the upgrade steps once and saves.
const schemaVersion = 2

// Account is one user record.
type Account struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	// Password is the credential hash.
	Password string `json:"password"`
	// Encrypted is the recoverable credential material, kept so the
	// hashing scheme can be migrated without a reset.
	Encrypted string `json:"encrypted"`
	UserID    string `json:"user_id"`
	// Created and LastLogin are unix timestamps.
	Created   int64 `json:"created"`
	LastLogin int64 `json:"last_login"`
	Admin     bool  `json:"admin"`
	// Unlocked bypasses the password check for one recovery login.
	Unlocked bool `json:"unlocked"`
	// Google and Metadata are reserved for future use.
	Google   []string          `json:"google"`
	Metadata map[string]string `json:"metadata"`
}

// Info is the subset of an account safe to show other users.
type Info struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	UserID   string `json:"user_id"`
	Created  int64  `json:"created"`
}

// Info projects the public view of the account.
func (a *Account) Info() Info {
	return Info{
		Username: a.Username,
		Fullname: a.Fullname,
		UserID:   a.UserID,
		Created:  a.Created,
	}
}

// systemAccount builds the reserved indexer account.
func systemAccount() *Account {
	return &Account{
		Username: SystemUsername,
		Fullname: "System Indexer",
		UserID:   SystemUsername,
		Admin:    true,
		Google:   []string{},
		Metadata: map[string]string{},
	}
}

// persistedAccounts is the on-disk document.
type persistedAccounts struct {
	Version  int                 `json:"version"`
	Accounts map[string]*Account `json:"accounts"`
}

func nowUnix() int64 {
	return time.Now().Unix()
}
