package identity

// nicknameGroups lists common US given-name equivalence classes. The first
// entry is the canonical form.
var nicknameGroups = [][]string{
	{"robert", "bob", "rob", "bobby", "robbie", "bert"},
	{"william", "bill", "will", "billy", "willie", "liam"},
	{"james", "jim", "jimmy", "jamie"},
	{"john", "jack", "johnny", "jon"},
	{"richard", "rick", "dick", "richie", "rich"},
	{"michael", "mike", "mickey", "mick"},
	{"thomas", "tom", "tommy"},
	{"charles", "charlie", "chuck", "chaz"},
	{"christopher", "chris", "kit"},
	{"daniel", "dan", "danny"},
	{"matthew", "matt"},
	{"anthony", "tony"},
	{"steven", "steve", "stephen"},
	{"edward", "ed", "eddie", "ted", "ned"},
	{"andrew", "andy", "drew"},
	{"nicholas", "nick", "nicky"},
	{"joseph", "joe", "joey"},
	{"samuel", "sam", "sammy"},
	{"benjamin", "ben", "benny"},
	{"alexander", "alex", "xander"},
	{"theodore", "ted", "teddy", "theo"},
	{"lawrence", "larry"},
	{"gerald", "jerry"},
	{"ronald", "ron", "ronnie"},
	{"donald", "don", "donny"},
	{"kenneth", "ken", "kenny"},
	{"raymond", "ray"},
	{"gregory", "greg"},
	{"timothy", "tim", "timmy"},
	{"jeffrey", "jeff"},
	{"david", "dave", "davey"},
	{"francis", "frank", "frankie"},
	{"elizabeth", "liz", "beth", "betsy", "eliza", "betty", "lizzie"},
	{"margaret", "maggie", "meg", "peggy", "marge", "peg"},
	{"katherine", "kate", "katie", "kathy", "kath", "catherine", "cathy", "kay"},
	{"jennifer", "jen", "jenny"},
	{"patricia", "pat", "patty", "trish", "tricia"},
	{"susan", "sue", "susie", "suzanne"},
	{"deborah", "deb", "debbie"},
	{"barbara", "barb", "bobbie"},
	{"dorothy", "dot", "dottie"},
	{"rebecca", "becky", "becca"},
	{"kimberly", "kim"},
	{"cynthia", "cindy"},
	{"sandra", "sandy"},
	{"pamela", "pam"},
	{"frances", "fran", "frannie"},
	{"virginia", "ginny"},
	{"victoria", "vicky", "tori"},
	{"abigail", "abby", "gail"},
	{"jacqueline", "jackie"},
	{"samantha", "sam"},
}

// nicknameCanon maps every variant to its canonical form. A variant in
// multiple groups (ted, sam) keeps the first group's canon; the lookup only
// has to say two names could be the same person, not pick one.
var nicknameCanon = func() map[string]string {
	m := make(map[string]string)
	for _, group := range nicknameGroups {
		for _, name := range group {
			if _, ok := m[name]; !ok {
				m[name] = group[0]
			}
		}
	}
	return m
}()

// nicknameEquivalent reports whether two normalized first names are variants
// of the same given name.
func nicknameEquivalent(a, b string) bool {
	ca, ok := nicknameCanon[a]
	if !ok {
		return false
	}
	cb, ok := nicknameCanon[b]
	return ok && ca == cb
}

// commonLastNames triggers a same-name-collision warning when no other
// identifying component corroborates the match.
var commonLastNames = map[string]bool{
	"smith": true, "johnson": true, "williams": true, "brown": true,
	"jones": true, "garcia": true, "miller": true, "davis": true,
	"rodriguez": true, "martinez": true, "hernandez": true, "lopez": true,
	"gonzalez": true, "wilson": true, "anderson": true, "thomas": true,
	"taylor": true, "moore": true, "jackson": true, "martin": true,
	"lee": true, "perez": true, "thompson": true, "white": true,
	"harris": true, "sanchez": true, "clark": true, "lewis": true,
	"robinson": true, "walker": true, "young": true, "allen": true,
	"king": true, "wright": true, "scott": true, "nguyen": true,
	"hill": true, "green": true, "adams": true, "baker": true,
	"nelson": true, "hall": true, "rivera": true, "campbell": true,
	"mitchell": true, "carter": true, "roberts": true,
}

// commonFirstNames lists high-frequency given names in canonical form; look
// up through canonicalFirst so nickname variants (bob, bill, liz) hit it too.
var commonFirstNames = map[string]bool{
	"james": true, "john": true, "robert": true, "michael": true,
	"william": true, "david": true, "richard": true, "joseph": true,
	"thomas": true, "charles": true, "christopher": true, "daniel": true,
	"matthew": true, "anthony": true, "mark": true, "steven": true,
	"andrew": true, "kenneth": true, "joshua": true, "kevin": true,
	"mary": true, "patricia": true, "jennifer": true, "linda": true,
	"elizabeth": true, "barbara": true, "susan": true, "jessica": true,
	"sarah": true, "karen": true, "nancy": true, "lisa": true,
	"margaret": true, "sandra": true, "ashley": true, "emily": true,
	"donna": true, "michelle": true, "carol": true, "amanda": true,
}

// canonicalFirst resolves a normalized first name to its canonical form,
// falling back to the name itself when it has no nickname group.
func canonicalFirst(name string) string {
	if canon, ok := nicknameCanon[name]; ok {
		return canon
	}
	return name
}
