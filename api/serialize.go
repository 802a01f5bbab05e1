package api

import (
	"strconv"

	"github.com/ivolkov/loothound/game/app"
	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/game/model"
)

func directionLetter(direction geom.Direction) string {
	switch direction {
	case geom.North:
		return "U"
	case geom.South:
		return "D"
	case geom.West:
		return "L"
	case geom.East:
		return "R"
	}
	return ""
}

func mapsListDocument(maps []*model.Map) []map[string]string {
	doc := make([]map[string]string, 0, len(maps))
	for _, m := range maps {
		doc = append(doc, map[string]string{
			"id":   m.ID(),
			"name": m.Name(),
		})
	}
	return doc
}

func mapInfoDocument(m *model.Map) map[string]interface{} {
	roads := make([]map[string]float64, 0, len(m.Roads()))
	for _, road := range m.Roads() {
		entry := map[string]float64{
			"x0": road.Start().X,
			"y0": road.Start().Y,
		}
		if road.IsHorizontal() {
			entry["x1"] = road.End().X
		} else {
			entry["y1"] = road.End().Y
		}
		roads = append(roads, entry)
	}

	buildings := make([]map[string]float64, 0, len(m.Buildings()))
	for _, building := range m.Buildings() {
		buildings = append(buildings, map[string]float64{
			"x": building.Bounds.Position.X,
			"y": building.Bounds.Position.Y,
			"w": building.Bounds.Size.Width,
			"h": building.Bounds.Size.Height,
		})
	}

	offices := make([]map[string]interface{}, 0, len(m.Offices()))
	for _, office := range m.Offices() {
		offices = append(offices, map[string]interface{}{
			"id":      office.ID(),
			"x":       office.Position().X,
			"y":       office.Position().Y,
			"offsetX": office.Offset().DX,
			"offsetY": office.Offset().DY,
		})
	}

	lootTypes := make([]map[string]interface{}, 0, len(m.LootTypes()))
	for _, lootType := range m.LootTypes() {
		entry := map[string]interface{}{
			"name":  lootType.Name,
			"file":  lootType.File,
			"type":  lootType.Kind,
			"value": lootType.Value,
		}
		if lootType.Rotation != nil {
			entry["rotation"] = *lootType.Rotation
		}
		if lootType.Color != nil {
			entry["color"] = *lootType.Color
		}
		if lootType.Scale != nil {
			entry["scale"] = *lootType.Scale
		}
		lootTypes = append(lootTypes, entry)
	}

	return map[string]interface{}{
		"id":        m.ID(),
		"name":      m.Name(),
		"roads":     roads,
		"buildings": buildings,
		"offices":   offices,
		"lootTypes": lootTypes,
	}
}

func playersDocument(players []app.PlayerView) map[string]interface{} {
	doc := make(map[string]interface{}, len(players))
	for _, player := range players {
		doc[strconv.FormatUint(player.ID, 10)] = map[string]string{
			"name": player.Name,
		}
	}
	return doc
}

func stateDocument(view app.StateView) map[string]interface{} {
	players := make(map[string]interface{}, len(view.Players))
	for _, player := range view.Players {
		players[strconv.FormatUint(player.ID, 10)] = map[string]interface{}{
			"pos":   []float64{player.Position.X, player.Position.Y},
			"speed": []float64{player.Speed.X, player.Speed.Y},
			"dir":   directionLetter(player.Direction),
		}
	}

	lostObjects := make(map[string]interface{}, len(view.LostObjects))
	for _, object := range view.LostObjects {
		lostObjects[strconv.FormatUint(object.ID, 10)] = map[string]interface{}{
			"type": object.Type,
			"pos":  []float64{object.Position.X, object.Position.Y},
		}
	}

	return map[string]interface{}{
		"players":     players,
		"lostObjects": lostObjects,
	}
}

func recordsDocument(records []app.PlayerRecord) []map[string]interface{} {
	doc := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		doc = append(doc, map[string]interface{}{
			"name":     record.Name,
			"score":    record.Score,
			"playTime": record.PlayTime.Milliseconds(),
		})
	}
	return doc
}
