package worker

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/scrapefleet/coordinator/internal/scraper"
	"github.com/scrapefleet/coordinator/internal/store"
)

// toStoreResult translates the scraper's store-agnostic ResultData into a
// store.Result row, the one place this package reaches across that
// boundary.
func toStoreResult(data scraper.ResultData, workerID string, attempts int) store.Result {
	var characteristics datatypes.JSON
	if len(data.Characteristics) > 0 {
		if b, err := json.Marshal(data.Characteristics); err == nil {
			characteristics = datatypes.JSON(b)
		}
	}

	status := store.ResultSuccess
	if data.Status == string(scraper.OutcomeUnavailable) {
		status = store.ResultUnavailable
	}

	return store.Result{
		ItemID:           data.ItemID,
		Title:            data.Title,
		Description:      data.Description,
		Characteristics:  characteristics,
		Price:            data.Price,
		PublishedAt:      data.PublishedAt,
		SellerName:       data.SellerName,
		SellerProfileURL: data.SellerProfileURL,
		LocationAddress:  data.LocationAddress,
		LocationMetro:    data.LocationMetro,
		LocationRegion:   data.LocationRegion,
		ViewsTotal:       data.ViewsTotal,
		Status:           status,
		WorkerID:         workerID,
		Attempts:         attempts,
	}
}
