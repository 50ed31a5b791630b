package db

// Table names are chosen per call from configuration, so the models carry no
// TableName method.

type ServiceInfoModel struct {
	ID            string `gorm:"column:id;type:uuid;primaryKey"`
	ServiceName   string `gorm:"column:servicename;not null"`
	LatestVersion string `gorm:"column:latestversion;not null"`
	LastUpdated   int64  `gorm:"column:lastupdated;not null"`
}

type VersionInfoModel struct {
	ID          string `gorm:"column:id;type:uuid;primaryKey"`
	Version     string `gorm:"column:version;primaryKey"`
	Path        string `gorm:"column:path;not null"`
	LastUpdated int64  `gorm:"column:lastupdated;not null"`
}
