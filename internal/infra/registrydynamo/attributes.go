package registrydynamo

import (
	"fmt"

	"apiregistry/internal/domain"
	"apiregistry/internal/infra/awsclient"
)

// Attribute names match the tables the seeder has always written.
const (
	attrID            = "id"
	attrServiceName   = "servicename"
	attrLatestVersion = "latestversion"
	attrVersion       = "version"
	attrPath          = "path"
	attrLastUpdated   = "lastupdated"
)

func marshalItem(item domain.Item) (awsclient.Item, error) {
	switch rec := item.(type) {
	case domain.ServiceRecord:
		return awsclient.Item{
			attrID:            awsclient.String(rec.ID),
			attrServiceName:   awsclient.String(rec.ServiceName),
			attrLatestVersion: awsclient.String(rec.LatestVersion),
			attrLastUpdated:   awsclient.Number(rec.LastUpdated),
		}, nil
	case domain.VersionRecord:
		return awsclient.Item{
			attrID:          awsclient.String(rec.ServiceID),
			attrVersion:     awsclient.String(rec.Version),
			attrPath:        awsclient.String(rec.DocumentPath),
			attrLastUpdated: awsclient.Number(rec.LastUpdated),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported item type %T", item)
	}
}

// itemKey reads the key back from an item echoed by DynamoDB.
func itemKey(item awsclient.Item) (domain.ItemKey, error) {
	id, err := item.Str(attrID)
	if err != nil {
		return domain.ItemKey{}, err
	}
	key := domain.ItemKey{ServiceID: id}
	if v, ok := item[attrVersion]; ok && v.S != nil {
		key.Version = *v.S
	}
	return key, nil
}

func unmarshalService(item awsclient.Item) (domain.ServiceRecord, error) {
	var (
		rec domain.ServiceRecord
		err error
	)
	if rec.ID, err = item.Str(attrID); err != nil {
		return rec, err
	}
	if rec.ServiceName, err = item.Str(attrServiceName); err != nil {
		return rec, err
	}
	if rec.LatestVersion, err = item.Str(attrLatestVersion); err != nil {
		return rec, err
	}
	rec.LastUpdated, err = item.Int64(attrLastUpdated)
	return rec, err
}

func unmarshalVersion(item awsclient.Item) (domain.VersionRecord, error) {
	var (
		rec domain.VersionRecord
		err error
	)
	if rec.ServiceID, err = item.Str(attrID); err != nil {
		return rec, err
	}
	if rec.Version, err = item.Str(attrVersion); err != nil {
		return rec, err
	}
	if rec.DocumentPath, err = item.Str(attrPath); err != nil {
		return rec, err
	}
	rec.LastUpdated, err = item.Int64(attrLastUpdated)
	return rec, err
}
