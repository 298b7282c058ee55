package acceptance

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openpecha/pecha-tools-api/config"
	"github.com/openpecha/pecha-tools-api/controllers"
	"github.com/openpecha/pecha-tools-api/middleware"
	"github.com/openpecha/pecha-tools-api/models"
	"github.com/openpecha/pecha-tools-api/services"
	"github.com/openpecha/pecha-tools-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// IconUploadAcceptanceTestSuite covers the tool icon feature end to
// end: an admin uploads an icon, and a visitor fetches it through the
// public redirect route
type IconUploadAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
	icons  *services.MockIconService
}

// SetupSuite runs once before all tests
func (suite *IconUploadAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)
	suite.db = db

	err = db.AutoMigrate(&models.User{}, &models.Tool{})
	suite.NoError(err)

	config.SetDB(db)

	suite.icons = services.NewMockIconService()
	suite.icons.SetAsMockForTesting()

	router := suite.createRouter()
	suite.server = httptest.NewServer(router)
}

// TearDownSuite runs once after all tests
func (suite *IconUploadAcceptanceTestSuite) TearDownSuite() {
	suite.server.Close()
	services.SetIconService(nil)
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// SetupTest runs before each test
func (suite *IconUploadAcceptanceTestSuite) SetupTest() {
	testutil.RequireTestEnvironment(suite.T())
	suite.db.Exec("DELETE FROM tools")
	suite.db.Exec("DELETE FROM users")
	suite.icons.Clear()

	admin := models.User{ID: "auth0|admin", Email: "admin@pecha.org", IsAdmin: true}
	suite.NoError(suite.db.Create(&admin).Error)
}

// createRouter creates the icon routes for acceptance testing
func (suite *IconUploadAcceptanceTestSuite) createRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	asAdmin := testutil.MockAuthMiddleware("auth0|admin", "admin@pecha.org", "mock-token")
	requireAdmin := middleware.RequireAdmin()

	tools := router.Group("/api/tools")
	{
		tools.GET("/:id/icon", controllers.GetToolIcon)
		tools.POST("/:id/icon", asAdmin, requireAdmin, controllers.UploadToolIcon)
	}

	return router
}

// uploadIcon performs a multipart upload against the live server
func (suite *IconUploadAcceptanceTestSuite) uploadIcon(toolID, filename string, content []byte) *http.Response {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if filename != "" {
		part, err := writer.CreateFormFile("icon", filename)
		suite.NoError(err)
		_, err = part.Write(content)
		suite.NoError(err)
	}
	suite.NoError(writer.Close())

	req, err := http.NewRequest("POST", suite.server.URL+"/api/tools/"+toolID+"/icon", body)
	suite.NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	suite.NoError(err)
	return resp
}

// TestIconUploadAndFetch_Acceptance uploads an icon and fetches it back
func (suite *IconUploadAcceptanceTestSuite) TestIconUploadAndFetch_Acceptance() {
	tool := models.Tool{Name: "Monlam OCR", Status: models.StatusBeta}
	suite.NoError(suite.db.Create(&tool).Error)

	// Admin uploads a PNG icon
	resp := suite.uploadIcon(tool.ID, "ocr.png", []byte("png bytes"))
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var updated models.Tool
	suite.NoError(json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()

	suite.NotNil(updated.Icon)
	assert.True(suite.T(), suite.icons.IconExists(*updated.Icon))
	assert.NotEmpty(suite.T(), updated.IconURL)

	// A visitor fetches the icon and is redirected to storage
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	getResp, err := client.Get(suite.server.URL + "/api/tools/" + tool.ID + "/icon")
	suite.NoError(err)
	defer getResp.Body.Close()

	assert.Equal(suite.T(), http.StatusFound, getResp.StatusCode)
	assert.Contains(suite.T(), getResp.Header.Get("Location"), *updated.Icon)
}

// TestIconFormatRejected_Acceptance verifies only PNG uploads pass
func (suite *IconUploadAcceptanceTestSuite) TestIconFormatRejected_Acceptance() {
	tool := models.Tool{Name: "Aligner"}
	suite.NoError(suite.db.Create(&tool).Error)

	resp := suite.uploadIcon(tool.ID, "icon.svg", []byte("<svg/>"))
	defer resp.Body.Close()

	assert.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)

	var response map[string]string
	suite.NoError(json.NewDecoder(resp.Body).Decode(&response))
	assert.NotEmpty(suite.T(), response["detail"])

	// The tool row is untouched
	var fromDB models.Tool
	suite.NoError(suite.db.First(&fromDB, "id = ?", tool.ID).Error)
	assert.Nil(suite.T(), fromDB.Icon)
}

// TestIconForUnknownTool_Acceptance verifies the not-found paths
func (suite *IconUploadAcceptanceTestSuite) TestIconForUnknownTool_Acceptance() {
	resp := suite.uploadIcon("no-such-id", "x.png", []byte("x"))
	resp.Body.Close()
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)

	getResp, err := http.Get(suite.server.URL + "/api/tools/no-such-id/icon")
	suite.NoError(err)
	getResp.Body.Close()
	assert.Equal(suite.T(), http.StatusNotFound, getResp.StatusCode)
}

// TestIconUploadAcceptanceTestSuite runs the test suite
func TestIconUploadAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(IconUploadAcceptanceTestSuite))
}
