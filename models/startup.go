package models

import "time"

// Tag is a unique label shared by startups and investor interests.
type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:50;uniqueIndex;not null"`
}

// TableName keeps the table short and explicit.
func (Tag) TableName() string { return "tags" }

// Startup is a founder-owned company profile.
type Startup struct {
	ID               uint              `json:"id" gorm:"primaryKey"`
	FounderID        uint              `json:"-" gorm:"index;not null"`
	Founder          User              `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Name             string            `json:"name" gorm:"size:255;not null"`
	DescriptionShort string            `json:"description_short" gorm:"size:300"`
	DescriptionLong  string            `json:"description_long" gorm:"type:text"`
	WebsiteURL       *string           `json:"website_url" gorm:"size:512"`
	FoundingYear     int               `json:"founding_year"`
	Tags             []Tag             `json:"tags" gorm:"many2many:startup_tags"`
	IsActive         bool              `json:"is_active" gorm:"index"`
	Documents        []StartupDocument `json:"documents" gorm:"constraint:OnDelete:CASCADE"`
	Report           *Report           `json:"report,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName keeps the table short and explicit.
func (Startup) TableName() string { return "startups" }

// StartupDocument is an uploaded file attached to a startup.
type StartupDocument struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	StartupID   uint      `json:"-" gorm:"index;not null"`
	Document    string    `json:"document" gorm:"size:512;not null"`
	Description string    `json:"description" gorm:"size:255"`
	UploadedAt  time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

// TableName keeps the table short and explicit.
func (StartupDocument) TableName() string { return "startup_documents" }

// Report is the founder-written one-page summary of a startup.
type Report struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	StartupID uint   `json:"-" gorm:"uniqueIndex;not null"`
	Title     string `json:"title" gorm:"size:255;not null"`
	Audience  string `json:"audience" gorm:"type:text"`
	Niche     string `json:"niche" gorm:"type:text"`
	Problem   string `json:"problem" gorm:"type:text"`
	Solution  string `json:"solution" gorm:"type:text"`
}

// TableName keeps the table short and explicit.
func (Report) TableName() string { return "startup_reports" }

// StartupListItem is the compact list representation.
type StartupListItem struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Founder          string `json:"founder"`
	DescriptionShort string `json:"description_short"`
	Tags             []Tag  `json:"tags"`
	FoundingYear     int    `json:"founding_year"`
}

// StartupDetail is the full representation with the computed like count.
type StartupDetail struct {
	ID               uint              `json:"id"`
	Name             string            `json:"name"`
	Founder          string            `json:"founder"`
	DescriptionShort string            `json:"description_short"`
	DescriptionLong  string            `json:"description_long"`
	WebsiteURL       *string           `json:"website_url"`
	FoundingYear     int               `json:"founding_year"`
	IsActive         bool              `json:"is_active"`
	Tags             []Tag             `json:"tags"`
	Documents        []StartupDocument `json:"documents"`
	Report           *Report           `json:"report"`
	LikesCount       int64             `json:"likes_count"`
}

// ListItem converts a startup with a preloaded Founder and Tags.
func (s Startup) ListItem() StartupListItem {
	return StartupListItem{
		ID:               s.ID,
		Name:             s.Name,
		Founder:          s.Founder.String(),
		DescriptionShort: s.DescriptionShort,
		Tags:             nonNilTags(s.Tags),
		FoundingYear:     s.FoundingYear,
	}
}

// Detail converts a fully preloaded startup.
func (s Startup) Detail(likes int64) StartupDetail {
	docs := s.Documents
	if docs == nil {
		docs = []StartupDocument{}
	}
	return StartupDetail{
		ID:               s.ID,
		Name:             s.Name,
		Founder:          s.Founder.String(),
		DescriptionShort: s.DescriptionShort,
		DescriptionLong:  s.DescriptionLong,
		WebsiteURL:       s.WebsiteURL,
		FoundingYear:     s.FoundingYear,
		IsActive:         s.IsActive,
		Tags:             nonNilTags(s.Tags),
		Documents:        docs,
		Report:           s.Report,
		LikesCount:       likes,
	}
}

// StartupDTO is the create/update payload. Pointer fields allow partial updates.
type StartupDTO struct {
	Name             *string  `json:"name"`
	DescriptionShort *string  `json:"description_short"`
	DescriptionLong  *string  `json:"description_long"`
	WebsiteURL       *string  `json:"website_url"`
	FoundingYear     *int     `json:"founding_year"`
	IsActive         *bool    `json:"is_active"`
	Tags             []string `json:"tags"`
}

// ReportDTO is the one-to-one report payload.
type ReportDTO struct {
	Title    string `json:"title" binding:"required,max=255"`
	Audience string `json:"audience"`
	Niche    string `json:"niche"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

func nonNilTags(tags []Tag) []Tag {
	if tags == nil {
		return []Tag{}
	}
	return tags
}
