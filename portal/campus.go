package portal

// Campuses maps the fixed HUTECH campus names to their check-in coordinates.
var Campuses = map[string]Location{
	"Thu Duc Campus":       {Lat: 10.8550845, Long: 106.7853143},
	"Sai Gon Campus":       {Lat: 10.8021417, Long: 106.7149192},
	"Ung Van Khiem Campus": {Lat: 10.8098001, Long: 106.714906},
	"Hitech Park Campus":   {Lat: 10.8408075, Long: 106.8088987},
}

// CampusNames returns the campus names in a stable display order.
func CampusNames() []string {
	return []string{
		"Thu Duc Campus",
		"Sai Gon Campus",
		"Ung Van Khiem Campus",
		"Hitech Park Campus",
	}
}
