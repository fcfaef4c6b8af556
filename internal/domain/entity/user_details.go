package entity

import "strings"

// Sex of a user. Empty means unspecified.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// ParseSex accepts MALE or FEMALE in any case; empty input yields the unspecified value.
func ParseSex(s string) (Sex, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case string(SexMale):
		return SexMale, true
	case string(SexFemale):
		return SexFemale, true
	}
	return "", false
}

// UserDetails is embedded in User and has no identity of its own.
type UserDetails struct {
	Description string
	Comment     string
	PhoneNo     string
	IMHandle    string
	Office      string
	Department  string
	Sex         Sex
	Image       ProfileImage
}

// ProfileImage holds the profile picture bytes, which are fetched on demand.
// A zero value is "not loaded"; repositories never overwrite the stored image
// from an image that was not loaded.
type ProfileImage struct {
	data   []byte
	loaded bool
}

// LoadedImage wraps bytes that are known to be the current image. nil clears it.
func LoadedImage(data []byte) ProfileImage {
	return ProfileImage{data: data, loaded: true}
}

func (i ProfileImage) Loaded() bool { return i.loaded }

// Bytes returns the image and whether it was loaded.
func (i ProfileImage) Bytes() ([]byte, bool) { return i.data, i.loaded }

// Len is the image size in bytes, 0 when not loaded.
func (i ProfileImage) Len() int { return len(i.data) }
