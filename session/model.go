package session

import "time"

// Location defines a public type used by authcore APIs.
//
// Location instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Location struct {
	Country  string  `json:"country,omitempty"`
	Region   string  `json:"region,omitempty"`
	City     string  `json:"city,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
	ISP      string  `json:"isp,omitempty"`
}

// Session is the stored record for one login.
//
// Session instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Session struct {
	SessionID  string    `json:"sid"`
	UserID     string    `json:"uid"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"ua,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	Device     string    `json:"device,omitempty"`
	Location   Location  `json:"location,omitempty"`
	IsActive   bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Info is the read model returned to callers listing their sessions. Secret material
// never appears here.
type Info struct {
	SessionID  string
	IP         string
	Platform   string
	Browser    string
	Device     string
	Location   Location
	IsActive   bool
	Current    bool
	CreatedAt  time.Time
	LastActive time.Time
}

func (s *Session) info() Info {
	return Info{
		SessionID:  s.SessionID,
		IP:         s.IP,
		Platform:   s.Platform,
		Browser:    s.Browser,
		Device:     s.Device,
		Location:   s.Location,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
	}
}
