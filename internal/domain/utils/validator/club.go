package validator

import (
	"strings"
	"unicode/utf8"
)

const (
	clubNameMin        = 3
	clubNameMax        = 50
	clubDescriptionMax = 400
	requestMessageMax  = 500
	banReasonMax       = 512
)

func ClubName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= clubNameMin && n <= clubNameMax
}

func ClubDescription(description string) bool {
	return utf8.RuneCountInString(description) <= clubDescriptionMax
}

func MaxMembers(maxMembers *int) bool {
	return maxMembers == nil || *maxMembers > 0
}

func JoinRequestMessage(message string) bool {
	return utf8.RuneCountInString(message) <= requestMessageMax
}

func BanReason(reason string) bool {
	return utf8.RuneCountInString(reason) <= banReasonMax
}
