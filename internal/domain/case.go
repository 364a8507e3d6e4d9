package domain

// CaseStatus is the lifecycle state of a case manifest.
type CaseStatus string

const (
	CaseStatusOpen     CaseStatus = "open"
	CaseStatusResolved CaseStatus = "resolved"
	CaseStatusTimeout  CaseStatus = "timeout"
)

// CaseIndex points at the single open case for a user, or none.
type CaseIndex struct {
	OpenCaseID *int `json:"open_case_id,omitempty"`
}

// CaseManifest is the per-case metadata document at
// cases/<case_id>/case_manifest.json.
type CaseManifest struct {
	CaseID          int        `json:"case_id"`
	Model           string     `json:"model,omitempty"`
	Status          CaseStatus `json:"status"`
	TimeOpened      string     `json:"time_opened"`
	TimeLastMessage string     `json:"time_last_message,omitempty"`
	TimeClosed      string     `json:"time_closed,omitempty"`
	MessageIDs      []string   `json:"message_ids"`
}

// NewCaseManifest opens a new manifest for caseID.
func NewCaseManifest(caseID int) *CaseManifest {
	return &CaseManifest{
		CaseID:     caseID,
		Status:     CaseStatusOpen,
		TimeOpened: NowUTCISO(),
		MessageIDs: []string{},
	}
}

// HasMessage reports whether id is already recorded.
func (m *CaseManifest) HasMessage(id string) bool {
	for _, existing := range m.MessageIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// UserData is the per-user profile document at user_data.json.
type UserData struct {
	UserID       string   `json:"user_id"`
	RegionCode   string   `json:"region_code,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
	Country      string   `json:"country,omitempty"`
	Language     string   `json:"language,omitempty"`
	Names        []string `json:"names"`
}

// NewUserData constructs a fresh profile for a first-contact user.
func NewUserData(userID string) *UserData {
	return &UserData{UserID: userID, Names: []string{}}
}

// AppendName appends name to Names iff it has not been observed before,
// matching the append-only-unique lifecycle rule. Returns true if the
// document was mutated.
func (u *UserData) AppendName(name string) bool {
	if name == "" {
		return false
	}
	for _, existing := range u.Names {
		if existing == name {
			return false
		}
	}
	u.Names = append(u.Names, name)
	return true
}
