package match

import (
	"time"

	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/repository"
)

// StatusMatched is reported by ProfileView when the pair has a Match.
const StatusMatched = "matched"

// Contact is disclosed only between matched members.
type Contact struct {
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

func contactOf(u *db.User) Contact {
	return Contact{Email: u.Email, Phone: u.Phone, WhatsApp: u.WhatsApp}
}

// String renders the contact the way it appears in notification text.
func (c Contact) String() string {
	s := c.Email
	if c.Phone != "" {
		s += ", " + c.Phone
	}
	if c.WhatsApp != "" {
		s += ", WhatsApp: " + c.WhatsApp
	}
	return s
}

// ProfileCard is the browse-list projection.
type ProfileCard struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Age          *int      `json:"age"`
	City         string    `json:"city"`
	Education    string    `json:"education"`
	Occupation   string    `json:"occupation"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfilePage is one page of BrowseProfiles.
type ProfilePage struct {
	Profiles      []ProfileCard
	NextPageToken *string
}

// ProfileDetail is the single-profile projection. Contact fields are never
// part of it; ContactDetails is filled only for a matched pair.
type ProfileDetail struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Age          *int      `json:"age"`
	Gender       string    `json:"gender"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Education    string    `json:"education"`
	Occupation   string    `json:"occupation"`
	Height       *int      `json:"height"`
	Weight       *int      `json:"weight"`
	Complexion   string    `json:"complexion"`
	MotherTongue string    `json:"mother_tongue"`
	Religion     string    `json:"religion"`
	Caste        string    `json:"caste"`
	SubCaste     string    `json:"sub_caste"`
	Gothram      string    `json:"gothram"`
	Star         string    `json:"star"`
	Rasi         string    `json:"rasi"`
	Interests    string    `json:"interests"`
	About        string    `json:"about"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	ElderBrothers    int    `json:"elder_brothers"`
	YoungerBrothers  int    `json:"younger_brothers"`
	ElderSisters     int    `json:"elder_sisters"`
	YoungerSisters   int    `json:"younger_sisters"`
	FatherOccupation string `json:"father_occupation"`
	MotherOccupation string `json:"mother_occupation"`
	FamilyDetails    string `json:"family_details"`

	PartnerEducation    string `json:"partner_education"`
	PartnerOccupation   string `json:"partner_occupation"`
	PartnerExpectations string `json:"partner_expectations"`

	// MatchStatus is "matched", a request status, or nil when the pair
	// never exchanged a request.
	MatchStatus    *string  `json:"match_status"`
	CanSendRequest bool     `json:"can_send_request"`
	ContactDetails *Contact `json:"contact_details,omitempty"`
}

// IncomingRequest is a pending request as shown to its receiver.
type IncomingRequest struct {
	ID           uint64           `json:"id"`
	SenderID     uint64           `json:"sender_id"`
	Status       db.RequestStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	SenderName   string           `json:"sender_name"`
	ProfilePhoto string           `json:"profile_photo,omitempty"`
}

func (s *Service) photoURL(ref string) string {
	if ref == "" || s.store == nil {
		return ref
	}
	return s.store.URL(ref)
}

func (s *Service) toCard(u db.User) ProfileCard {
	return ProfileCard{
		ID:           u.ID,
		Name:         u.Name,
		Age:          u.Profile.Age,
		City:         u.Profile.City,
		Education:    u.Profile.Education,
		Occupation:   u.Profile.Occupation,
		ProfilePhoto: s.photoURL(u.Profile.ProfilePhoto),
		CreatedAt:    u.CreatedAt,
	}
}

func (s *Service) toDetail(u *db.User) *ProfileDetail {
	p := u.Profile
	return &ProfileDetail{
		ID:                  u.ID,
		Name:                u.Name,
		Age:                 p.Age,
		Gender:              p.Gender,
		City:                p.City,
		State:               p.State,
		Education:           p.Education,
		Occupation:          p.Occupation,
		Height:              p.Height,
		Weight:              p.Weight,
		Complexion:          p.Complexion,
		MotherTongue:        p.MotherTongue,
		Religion:            p.Religion,
		Caste:               p.Caste,
		SubCaste:            p.SubCaste,
		Gothram:             p.Gothram,
		Star:                p.Star,
		Rasi:                p.Rasi,
		Interests:           p.Interests,
		About:               p.About,
		ProfilePhoto:        s.photoURL(p.ProfilePhoto),
		CreatedAt:           u.CreatedAt,
		ElderBrothers:       p.ElderBrothers,
		YoungerBrothers:     p.YoungerBrothers,
		ElderSisters:        p.ElderSisters,
		YoungerSisters:      p.YoungerSisters,
		FatherOccupation:    p.FatherOccupation,
		MotherOccupation:    p.MotherOccupation,
		FamilyDetails:       p.FamilyDetails,
		PartnerEducation:    p.PartnerEducation,
		PartnerOccupation:   p.PartnerOccupation,
		PartnerExpectations: p.PartnerExpectations,
	}
}

func (s *Service) toIncoming(r repository.IncomingRequest) IncomingRequest {
	return IncomingRequest{
		ID:           r.ID,
		SenderID:     r.SenderID,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		SenderName:   r.SenderName,
		ProfilePhoto: s.photoURL(r.ProfilePhoto),
	}
}
