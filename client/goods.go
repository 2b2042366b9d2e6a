package client

import (
	"context"
	"fmt"
	"net/http"

	v1 "botadmin/pkg/api/v1"
)

const (
	goodsPath      = "goods/"
	goodImagesPath = "goods/images/"
)

type GoodsService struct {
	c *Client
}

func (c *Client) Goods() *GoodsService {
	return &GoodsService{c: c}
}

func (s *GoodsService) List(ctx context.Context) ([]v1.Good, error) {
	return getList[v1.Good](ctx, s.c, goodsPath, nil)
}

func (s *GoodsService) Get(ctx context.Context, id int64) (*v1.Good, error) {
	var g v1.Good
	if err := s.c.Get(ctx, itemPath(goodsPath, id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GoodsService) Create(ctx context.Context, g v1.Good) (*v1.Good, error) {
	var out v1.Good
	if err := s.c.Post(ctx, goodsPath, g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GoodsService) Update(ctx context.Context, id int64, g v1.Good) (*v1.Good, error) {
	var out v1.Good
	if err := s.c.Put(ctx, itemPath(goodsPath, id), g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PartialUpdate sends only the given fields.
func (s *GoodsService) PartialUpdate(ctx context.Context, id int64, fields map[string]any) (*v1.Good, error) {
	var out v1.Good
	if err := s.c.Patch(ctx, itemPath(goodsPath, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GoodsService) Delete(ctx context.Context, id int64) error {
	return s.c.Delete(ctx, itemPath(goodsPath, id))
}

func (s *GoodsService) UploadPhoto(ctx context.Context, goodID int64, photo File) (*v1.GoodImage, error) {
	var out v1.GoodImage
	form := NewForm().AddFile("image", photo)
	if err := s.c.Upload(ctx, http.MethodPost, fmt.Sprintf("%s%d/upload-image/", goodsPath, goodID), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GoodsService) DeletePhoto(ctx context.Context, photoID int64) error {
	return s.c.Delete(ctx, itemPath(goodImagesPath, photoID))
}

// SetInvoicePhoto marks the photo as the one attached to payment invoices.
func (s *GoodsService) SetInvoicePhoto(ctx context.Context, photoID int64) (*v1.GoodImage, error) {
	var out v1.GoodImage
	if err := s.c.Patch(ctx, fmt.Sprintf("%s%d/set-as-invoice/", goodImagesPath, photoID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
