// AngelaMos | 2026
// regions.go

package report

// stateNames maps the numeric state codes used by the loan partner.
// Codes 13 and 23 both denote Tamil Nadu.
var stateNames = map[string]string{
	"1":  "Punjab",
	"2":  "Haryana",
	"3":  "Rajasthan",
	"4":  "Uttar Pradesh",
	"5":  "Bihar",
	"6":  "Madhya Pradesh",
	"7":  "Maharashtra",
	"8":  "Gujarat",
	"9":  "Delhi",
	"10": "West Bengal",
	"11": "Odisha",
	"12": "Kerala",
	"13": "Tamil Nadu",
	"14": "Karnataka",
	"15": "Andhra Pradesh",
	"16": "Telangana",
	"17": "Assam",
	"18": "Jharkhand",
	"19": "Chhattisgarh",
	"20": "Uttarakhand",
	"21": "Himachal Pradesh",
	"22": "Jammu and Kashmir",
	"23": "Tamil Nadu",
	"24": "Goa",
}

func regionName(code string) string {
	if name, ok := stateNames[code]; ok {
		return name
	}
	return code
}
