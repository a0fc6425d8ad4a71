package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	geoPointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "GeoPointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	territoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Territory",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"area_m2":     &graphql.Field{Type: graphql.Float},
			"perimeter_m": &graphql.Field{Type: graphql.Float},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
			"updated_at":  &graphql.Field{Type: graphql.DateTime},
			"boundary": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch t := p.Source.(type) {
					case *domain.Territory:
						return t.Boundary.Coordinates, nil
					case domain.Territory:
						return t.Boundary.Coordinates, nil
					}
					return nil, nil
				},
			},
		},
	})

	buildingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Building",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"lat":             &graphql.Field{Type: graphql.Float},
			"lon":             &graphql.Field{Type: graphql.Float},
			"address":         &graphql.Field{Type: graphql.String},
			"building_number": &graphql.Field{Type: graphql.Int},
			"source":          &graphql.Field{Type: graphql.String},
		},
	})

	detectionResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DetectionResult",
		Fields: graphql.Fields{
			"buildings": &graphql.Field{Type: graphql.NewList(buildingType)},
			"warnings":  &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	detectionRunType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DetectionRun",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.Int},
			"territory_id":    &graphql.Field{Type: graphql.String},
			"trigger":         &graphql.Field{Type: graphql.String},
			"building_count":  &graphql.Field{Type: graphql.Int},
			"simulated_count": &graphql.Field{Type: graphql.Int},
			"warnings":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"at":              &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"territory": &graphql.Field{
				Type:        territoryType,
				Description: "Get a territory by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Territories.GetByID(p.Context, id)
				},
			},
			"territories": &graphql.Field{
				Type:        graphql.NewList(territoryType),
				Description: "List saved territories, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					territories, _, err := deps.Territories.List(p.Context, limit, offset)
					return territories, err
				},
			},
			"detectBuildings": &graphql.Field{
				Type:        detectionResultType,
				Description: "Detect buildings inside a polygon",
				Args: graphql.FieldConfigArgument{
					"coordinates": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(geoPointInput))),
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["coordinates"].([]interface{})
					poly := domain.GeoPolygon{Coordinates: make([]domain.GeoPoint, 0, len(raw))}
					for _, item := range raw {
						m, ok := item.(map[string]interface{})
						if !ok {
							continue
						}
						lat, _ := m["lat"].(float64)
						lon, _ := m["lon"].(float64)
						poly.Coordinates = append(poly.Coordinates, domain.GeoPoint{Lat: lat, Lon: lon})
					}
					return deps.Detector.DetectBuildings(p.Context, poly), nil
				},
			},
			"detections": &graphql.Field{
				Type:        graphql.NewList(detectionRunType),
				Description: "Recent detection runs for a territory, newest first",
				Args: graphql.FieldConfigArgument{
					"territory_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":        &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["territory_id"].(string)
					limit := p.Args["limit"].(int)
					return deps.Territories.RunHistory(p.Context, id, limit)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint. GET carries the query in the
// URL, POST in a JSON body.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if c.Method() == fiber.MethodGet {
			req.Query = c.Query("query")
			req.OperationName = c.Query("operationName")
			if raw := c.Query("variables"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
					return c.Status(400).JSON(fiber.Map{"error": "invalid variables parameter"})
				}
			}
		} else if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
