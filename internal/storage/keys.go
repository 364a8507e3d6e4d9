package storage

import "fmt"

// Keys resolves every object-store key used for one (operator, user) pair.
// Case-scoped helpers additionally take the mutable case_id cursor set by
// the caller before case-scoped operations, matching the source's
// storage-layer state.
type Keys struct {
	OperatorID string
	UserID     string
}

func (k Keys) userRoot() string {
	return fmt.Sprintf("%s/%s", k.OperatorID, k.UserID)
}

func (k Keys) UserData() string {
	return k.userRoot() + "/user_data.json"
}

func (k Keys) CaseIndex() string {
	return k.userRoot() + "/case_index.json"
}

func (k Keys) DedupDir() string {
	return k.userRoot() + "/dedup"
}

func (k Keys) Dedup(idempotencyKey string) string {
	return fmt.Sprintf("%s/%s.json", k.DedupDir(), idempotencyKey)
}

func (k Keys) LocksDir() string {
	return k.userRoot() + "/locks"
}

func (k Keys) CasesDir() string {
	return k.userRoot() + "/cases"
}

func (k Keys) CaseDir(caseID int) string {
	return fmt.Sprintf("%s/%d", k.CasesDir(), caseID)
}

func (k Keys) Manifest(caseID int) string {
	return k.CaseDir(caseID) + "/case_manifest.json"
}

func (k Keys) MessagesDir(caseID int) string {
	return k.CaseDir(caseID) + "/messages"
}

func (k Keys) Message(caseID int, messageID string) string {
	return fmt.Sprintf("%s/%s.json", k.MessagesDir(caseID), messageID)
}

func (k Keys) MediaDir(caseID int) string {
	return k.CaseDir(caseID) + "/media"
}

func (k Keys) Media(caseID int, filename string) string {
	return fmt.Sprintf("%s/%s", k.MediaDir(caseID), filename)
}
