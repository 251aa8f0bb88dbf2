package remote

// playlistsResponse is one page of GET /v1/users/{id}/playlists
type playlistsResponse struct {
	Items              []playlistDTO `json:"items"`
	TotalNumberOfItems int           `json:"totalNumberOfItems"`
}

type playlistDTO struct {
	UUID          string `json:"uuid"`
	Title         string `json:"title"`
	NumberOfItems int    `json:"numberOfItems"`
	Editable      bool   `json:"editable"`
}

// itemsResponse is one page of GET /v1/playlists/{id}/items
type itemsResponse struct {
	Items              []itemEntryDTO `json:"items"`
	TotalNumberOfItems int            `json:"totalNumberOfItems"`
}

type itemEntryDTO struct {
	Item struct {
		ID string `json:"id"`
	} `json:"item"`
}

// addItemsRequest is the body of POST /v1/playlists/{id}/items
type addItemsRequest struct {
	ItemIDs []string `json:"itemIds"`
}
