package occasion

// seedSynonyms lists, per canonical field key, normalized fragments that
// older booking forms used for the same value.  Extend with WithSynonyms.
var seedSynonyms = map[string][]string{
	"partner1Name":        {"yournickname", "partner1", "nickname", "yourname"},
	"partner2Name":        {"partnernickname", "partner2", "partnername", "theirname"},
	"birthdayName":        {"birthdayperson", "birthdayname", "celebrant"},
	"birthdayGender":      {"gender"},
	"anniversaryYears":    {"yearstogether", "years"},
	"proposerName":        {"proposer", "proposedby"},
	"proposalPartnerName": {"proposee", "proposingto"},
	"valentineName":       {"valentine", "lovername"},
	"customOccasion":      {"occasionname", "customoccasion"},
}
