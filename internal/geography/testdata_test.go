package geography

const plGeographyJSON = `{
  "default": [{"isDefault": "true"}],
  "fips": [
    {"name": "us", "geoLevelDisplay": "010", "referenceDate": "2020-01-01"},
    {"name": "region", "geoLevelDisplay": "020", "referenceDate": "2020-01-01"},
    {"name": "division", "geoLevelDisplay": "030", "referenceDate": "2020-01-01"},
    {"name": "state", "geoLevelDisplay": "040", "referenceDate": "2020-01-01"},
    {"name": "county", "geoLevelDisplay": "050", "requires": ["state"], "wildcard": ["state"], "optionalWithWCFor": "state"},
    {"name": "county subdivision", "geoLevelDisplay": "060", "requires": ["state", "county"], "wildcard": ["county"], "optionalWithWCFor": "county"},
    {"name": "tract", "geoLevelDisplay": "140", "requires": ["state", "county"], "wildcard": ["county"], "optionalWithWCFor": "county"},
    {"name": "block group", "geoLevelDisplay": "150", "requires": ["state", "county", "tract"], "wildcard": ["county", "tract"]},
    {"name": "place", "geoLevelDisplay": "160", "requires": ["state"], "wildcard": ["state"]},
    {"name": "metropolitan statistical area/micropolitan statistical area", "geoLevelDisplay": "310"},
    {"name": "principal city (or part)", "geoLevelId": "312", "requires": ["metropolitan statistical area/micropolitan statistical area", "state (or part)"]}
  ]
}`
