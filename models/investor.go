package models

import "time"

// InvestorProfile is keyed by its user; one profile per account.
type InvestorProfile struct {
	UserID         uint   `json:"-" gorm:"primaryKey;autoIncrement:false"`
	User           User   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CompanyName    string `json:"company_name" gorm:"size:255"`
	InterestedTags []Tag  `json:"interested_in_tags" gorm:"many2many:investor_interested_tags;joinForeignKey:InvestorID;joinReferences:TagID"`
}

// TableName keeps the table short and explicit.
func (InvestorProfile) TableName() string { return "investor_profiles" }

// Like joins an investor to a startup they liked. The pair is unique.
type Like struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	InvestorID uint      `json:"investor_id" gorm:"not null;uniqueIndex:idx_likes_investor_startup"`
	StartupID  uint      `json:"startup_id" gorm:"not null;uniqueIndex:idx_likes_investor_startup"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName keeps the table short and explicit.
func (Like) TableName() string { return "likes" }

// InvestorProfileView is the profile representation returned by the API.
type InvestorProfileView struct {
	User             string            `json:"user"`
	CompanyName      string            `json:"company_name"`
	InterestedInTags []Tag             `json:"interested_in_tags"`
	LikedStartups    []StartupListItem `json:"liked_startups"`
}

// InvestorProfileDTO is the partial update payload of PUT /investor/profile/me.
type InvestorProfileDTO struct {
	CompanyName      *string  `json:"company_name"`
	InterestedInTags []string `json:"interested_in_tags"`
}
