package crypto

import "github.com/MKhiriev/go-fish-log/models"

// fieldSet lists the fields of one collection that are stored encrypted.
// Everything else stays plaintext so it can be queried and indexed.
type fieldSet struct {
	scalars []string
	arrays  []string
}

var encryptedFields = map[models.Collection]fieldSet{
	models.CollectionTrips: {
		scalars: []string{"water", "location", "companions", "notes"},
	},
	models.CollectionWeatherLogs: {
		scalars: []string{"timeOfDay", "sky", "windCondition", "windDirection", "waterTemp", "airTemp"},
	},
	models.CollectionFishCaught: {
		scalars: []string{"species", "length", "weight", "time", "details"},
		arrays:  []string{"gear"},
	},
	models.CollectionTackleItems: {
		scalars: []string{"name", "brand", "colour", "notes"},
	},
}

// EncryptedFields returns the scalar and array fields configured for coll.
// Unknown collections have no encrypted fields.
func EncryptedFields(coll models.Collection) (scalars, arrays []string) {
	set := encryptedFields[coll]
	return append([]string(nil), set.scalars...), append([]string(nil), set.arrays...)
}
